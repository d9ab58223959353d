package main

import (
	"math"
	"sync"
	"time"

	"scenecast.dev/internal/protocol"
)

const (
	glyphSize  = 16
	glyphCount = 4
	swatchSize = 16
)

var (
	monoTexture = protocol.AtlasTextureID{Index: 0, Kind: protocol.KindMonochrome}
	polyTexture = protocol.AtlasTextureID{Index: 0, Kind: protocol.KindPolychrome}
)

// demo is the procedural scene served when no fixture is configured. Input
// from any viewer changes the shared state.
type demo struct {
	mu       sync.Mutex
	viewport protocol.Size
	scale    float32
	pointer  protocol.Point
	pressed  bool
	clicks   uint32
	hue      float32
	paused   bool
	elapsed  time.Duration
	uploaded bool
}

func newDemo(viewport protocol.Size, scale float32) *demo {
	if scale <= 0 {
		scale = 1
	}
	return &demo{viewport: viewport, scale: scale, hue: 0.6}
}

func (d *demo) apply(in protocol.Input) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e := in.(type) {
	case protocol.MouseMove:
		d.pointer = e.Position
	case protocol.MouseDown:
		d.pointer = e.Position
		d.pressed = true
		d.clicks = e.ClickCount
	case protocol.MouseUp:
		d.pointer = e.Position
		d.pressed = false
	case protocol.Scroll:
		d.hue = float32(math.Mod(float64(d.hue+e.Delta.Y/2000)+1, 1))
	case protocol.KeyDown:
		if e.Key == " " || e.Key == "space" {
			d.paused = !d.paused
		}
	case protocol.Resize:
		if e.Size.Width > 0 && e.Size.Height > 0 {
			d.viewport = e.Size
		}
		if e.ScaleFactor > 0 {
			d.scale = e.ScaleFactor
		}
	}
}

// advance moves the animation clock unless paused.
func (d *demo) advance(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		d.elapsed += dt
	}
}

// markUploaded stops atlas entries from being attached to later frames; the
// hub mirror resends them to viewers that join afterwards.
func (d *demo) markUploaded() {
	d.mu.Lock()
	d.uploaded = true
	d.mu.Unlock()
}

func (d *demo) frame(id uint64) *protocol.FrameMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.scale
	w, h := d.viewport.Width*s, d.viewport.Height*s
	full := protocol.Bounds{Size: protocol.Size{Width: w, Height: h}}
	mask := protocol.ContentMask{Bounds: full}
	bg := protocol.Hsla{H: d.hue, S: 0.2, L: 0.12, A: 1}
	accent := protocol.Hsla{H: d.hue, S: 0.7, L: 0.6, A: 1}
	phase := float32(math.Mod(d.elapsed.Seconds()/4, 1))
	deep := protocol.Hsla{H: float32(math.Mod(float64(d.hue)+0.1, 1)), S: 0.5, L: 0.3, A: 1}

	card := protocol.Bounds{
		Origin: protocol.Point{X: 48 * s, Y: 48 * s},
		Size:   protocol.Size{Width: 320 * s, Height: 180 * s},
	}
	f := &protocol.FrameMessage{
		FrameID:         id,
		ViewportWidth:   d.viewport.Width,
		ViewportHeight:  d.viewport.Height,
		ScaleFactor:     s,
		BackgroundColor: bg,
	}
	if !d.uploaded {
		f.AtlasEntries = atlasEntries()
	}

	sc := &f.Scene
	sc.Quads = append(sc.Quads, protocol.Quad{
		Order:       1,
		Bounds:      full,
		ContentMask: mask,
		Background:  protocol.Solid{Color: bg},
	})
	sc.Shadows = append(sc.Shadows, protocol.Shadow{
		Order:       2,
		BlurRadius:  12 * s,
		Bounds:      offset(card, 0, 6*s),
		CornerRadii: uniform(10 * s),
		ContentMask: mask,
		Color:       protocol.Hsla{A: 0.5},
	})
	sc.Quads = append(sc.Quads, protocol.Quad{
		Order:       3,
		Bounds:      card,
		ContentMask: mask,
		Background: protocol.LinearGradient{
			Angle: 360 * phase,
			Stops: []protocol.LinearColorStop{
				{Color: accent, Percentage: 0},
				{Color: deep, Percentage: 1},
			},
		},
		BorderColor:  protocol.Hsla{L: 1, A: 0.3},
		CornerRadii:  uniform(10 * s),
		BorderWidths: protocol.Edges{Top: s, Right: s, Bottom: s, Left: s},
	})

	row := protocol.Point{X: card.Origin.X + 24*s, Y: card.Origin.Y + 32*s}
	shift := int(d.elapsed / (250 * time.Millisecond))
	for i := 0; i < 8; i++ {
		g := uint32((i+shift)%glyphCount) + 1
		sc.MonochromeSprites = append(sc.MonochromeSprites, protocol.MonochromeSprite{
			Order: 5,
			Bounds: protocol.Bounds{
				Origin: protocol.Point{X: row.X + float32(i)*(glyphSize+4)*s, Y: row.Y},
				Size:   protocol.Size{Width: glyphSize * s, Height: glyphSize * s},
			},
			ContentMask:    mask,
			Color:          protocol.Hsla{L: 1, A: 1},
			Tile:           glyphTile(g),
			Transformation: protocol.Identity,
		})
	}
	sc.Underlines = append(sc.Underlines, protocol.Underline{
		Order: 4,
		Bounds: protocol.Bounds{
			Origin: protocol.Point{X: row.X, Y: row.Y + (glyphSize+4)*s},
			Size:   protocol.Size{Width: 8 * (glyphSize + 4) * s, Height: 3 * s},
		},
		ContentMask: mask,
		Color:       accent,
		Thickness:   s,
		Wavy:        d.pressed,
	})
	sc.PolychromeSprites = append(sc.PolychromeSprites, protocol.PolychromeSprite{
		Order: 6,
		Bounds: protocol.Bounds{
			Origin: protocol.Point{X: card.Origin.X + card.Size.Width - 64*s, Y: card.Origin.Y + card.Size.Height - 64*s},
			Size:   protocol.Size{Width: 40 * s, Height: 40 * s},
		},
		ContentMask: mask,
		CornerRadii: uniform(6 * s),
		Opacity:     1,
		Tile: protocol.AtlasTile{
			TextureID: polyTexture,
			TileID:    1,
			Bounds:    protocol.AtlasBounds{Width: swatchSize, Height: swatchSize},
		},
	})
	sc.Paths = append(sc.Paths, trianglePath(card, s, phase, mask))

	cursor := protocol.Bounds{
		Origin: protocol.Point{X: d.pointer.X - 8*s, Y: d.pointer.Y - 8*s},
		Size:   protocol.Size{Width: 16 * s, Height: 16 * s},
	}
	var fill protocol.Background = protocol.PatternSlash{Color: accent, Height: 4 * s}
	if d.pressed {
		fill = protocol.Checkerboard{Color: accent, Size: 4 * s}
	}
	sc.Quads = append(sc.Quads, protocol.Quad{
		Order:       10,
		Bounds:      cursor,
		ContentMask: mask,
		Background:  fill,
		CornerRadii: uniform(8 * s),
	})
	// One dot per click in the current multi-click run.
	for i := uint32(0); i < d.clicks && i < 5; i++ {
		sc.Quads = append(sc.Quads, protocol.Quad{
			Order: 10,
			Bounds: protocol.Bounds{
				Origin: protocol.Point{X: cursor.Origin.X + float32(i)*6*s, Y: cursor.Origin.Y + 20*s},
				Size:   protocol.Size{Width: 4 * s, Height: 4 * s},
			},
			ContentMask: mask,
			Background:  protocol.Solid{Color: protocol.Hsla{L: 1, A: 1}},
		})
	}
	return f
}

func trianglePath(card protocol.Bounds, s, phase float32, mask protocol.ContentMask) protocol.Path {
	cx := card.Origin.X + card.Size.Width + 96*s
	cy := card.Origin.Y + card.Size.Height/2
	r := 48 * s
	var verts []protocol.PathVertex
	minX, minY := cx, cy
	maxX, maxY := cx, cy
	for i := 0; i < 3; i++ {
		a := 2*math.Pi*float64(phase) + float64(i)*2*math.Pi/3
		p := protocol.Point{X: cx + r*float32(math.Cos(a)), Y: cy + r*float32(math.Sin(a))}
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
		verts = append(verts, protocol.PathVertex{
			XYPosition:  p,
			STPosition:  protocol.Point{X: float32(i) / 2, Y: float32(i % 2)},
			ContentMask: mask,
		})
	}
	return protocol.Path{
		Order:       7,
		Bounds:      protocol.Bounds{Origin: protocol.Point{X: minX, Y: minY}, Size: protocol.Size{Width: maxX - minX, Height: maxY - minY}},
		ContentMask: mask,
		Color:       protocol.Solid{Color: protocol.Hsla{H: 0.1, S: 0.8, L: 0.55, A: 1}},
		Vertices:    verts,
	}
}

func glyphTile(id uint32) protocol.AtlasTile {
	return protocol.AtlasTile{
		TextureID: monoTexture,
		TileID:    id,
		Bounds:    protocol.AtlasBounds{OriginX: int32(id-1) * glyphSize, Width: glyphSize, Height: glyphSize},
	}
}

// atlasEntries generates the glyph strip and the colour swatch.
func atlasEntries() []protocol.AtlasEntry {
	out := make([]protocol.AtlasEntry, 0, glyphCount+1)
	for id := uint32(1); id <= glyphCount; id++ {
		tile := glyphTile(id)
		out = append(out, protocol.AtlasEntry{
			TextureID: monoTexture,
			Bounds:    tile.Bounds,
			Format:    protocol.KindMonochrome,
			PixelData: glyphPixels(id),
			TileID:    id,
		})
	}
	out = append(out, protocol.AtlasEntry{
		TextureID: polyTexture,
		Bounds:    protocol.AtlasBounds{Width: swatchSize, Height: swatchSize},
		Format:    protocol.KindPolychrome,
		PixelData: swatchPixels(),
		TileID:    1,
	})
	return out
}

// glyphPixels draws one of four shapes as 8-bit coverage.
func glyphPixels(id uint32) []byte {
	px := make([]byte, glyphSize*glyphSize)
	c := float64(glyphSize-1) / 2
	for y := 0; y < glyphSize; y++ {
		for x := 0; x < glyphSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			var on bool
			switch id {
			case 1: // ring
				r := math.Hypot(dx, dy)
				on = r > 4.5 && r < 7
			case 2: // diamond
				on = math.Abs(dx)+math.Abs(dy) < 7
			case 3: // cross
				on = math.Abs(dx) < 1.5 || math.Abs(dy) < 1.5
			default: // dot
				on = math.Hypot(dx, dy) < 3.5
			}
			if on {
				px[y*glyphSize+x] = 0xff
			}
		}
	}
	return px
}

// swatchPixels is a BGRA hue sweep.
func swatchPixels() []byte {
	px := make([]byte, 0, swatchSize*swatchSize*4)
	for y := 0; y < swatchSize; y++ {
		for x := 0; x < swatchSize; x++ {
			r, g, b := protocol.Hsla{H: float32(x) / swatchSize, S: 0.8, L: 0.3 + 0.4*float32(y)/swatchSize, A: 1}.RGB()
			px = append(px, b, g, r, 0xff)
		}
	}
	return px
}

func offset(b protocol.Bounds, dx, dy float32) protocol.Bounds {
	b.Origin.X += dx
	b.Origin.Y += dy
	return b
}

func uniform(r float32) protocol.Corners {
	return protocol.Corners{TopLeft: r, TopRight: r, BottomRight: r, BottomLeft: r}
}
