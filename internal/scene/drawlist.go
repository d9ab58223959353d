// Package scene turns decoded frames into ordered draw lists.
package scene

import (
	"context"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/protocol"
)

// DrawItem is one primitive in paint order. Region is set for sprites only
// and borrows atlas storage until the renderer returns.
type DrawItem struct {
	Primitive protocol.Primitive
	Region    *atlas.PixelRegion
}

// DrawList is the snapshot handed to a renderer for one frame. Renderers must
// not modify it.
type DrawList struct {
	FrameID     uint64
	Viewport    protocol.Size
	ScaleFactor float32
	Background  protocol.Hsla
	ThemeHints  protocol.ThemeHints
	Items       []DrawItem
}

// Counts tallies items per primitive kind.
func (d *DrawList) Counts() map[protocol.PrimitiveKind]int {
	out := make(map[protocol.PrimitiveKind]int)
	for _, it := range d.Items {
		out[it.Primitive.Kind()]++
	}
	return out
}

// Renderer consumes draw lists. Render is called once per accepted frame and
// the next frame is not assembled until it returns.
type Renderer interface {
	Render(ctx context.Context, list *DrawList) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, list *DrawList) error

func (f RendererFunc) Render(ctx context.Context, list *DrawList) error { return f(ctx, list) }
