package atlas

import "scenecast.dev/internal/protocol"

// PixelRegion is a borrowed view of tile pixels inside a tracker backing
// store. Row y starts at Pixels[y*Stride] and is Width*BytesPerPixel long.
type PixelRegion struct {
	Texture protocol.AtlasTextureID
	// Bounds is the sampled rectangle in texture coordinates, padding excluded.
	Bounds protocol.AtlasBounds
	Format protocol.AtlasTextureKind
	Width  int
	Height int
	Stride int
	Pixels []byte
	// Generation changes whenever the backing region is rebound, so renderers
	// can key uploaded textures on (Texture, Bounds, Generation).
	Generation uint64
}

func (r PixelRegion) BytesPerPixel() int { return r.Format.BytesPerPixel() }

// Empty reports whether the region has no pixels to sample.
func (r PixelRegion) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Row returns the pixels of row y.
func (r PixelRegion) Row(y int) []byte {
	start := y * r.Stride
	return r.Pixels[start : start+r.Width*r.BytesPerPixel()]
}

// Copy returns the region's pixels packed without stride padding. The result
// is owned by the caller.
func (r PixelRegion) Copy() []byte {
	rowLen := r.Width * r.BytesPerPixel()
	out := make([]byte, 0, rowLen*r.Height)
	for y := 0; y < r.Height; y++ {
		out = append(out, r.Row(y)...)
	}
	return out
}
