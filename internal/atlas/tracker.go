// Package atlas mirrors the sender's texture atlases on the receiving side.
package atlas

import (
	"fmt"

	"scenecast.dev/internal/protocol"
)

var (
	ErrUnknownTile      = protocol.NewCodedError(protocol.CodeUnknownTile, "atlas: unknown tile")
	ErrTileOutOfRange   = protocol.NewCodedError(protocol.CodeTileOutOfRange, "atlas: tile outside its bound region")
	ErrBoundsOutOfRange = protocol.NewCodedError(protocol.CodeBoundsOutOfRange, "atlas: entry bounds outside texture")
	ErrPixelDataSize    = protocol.NewCodedError(protocol.CodePixelDataSize, "atlas: pixel data size mismatch")
	ErrBadFormat        = protocol.NewCodedError(protocol.CodeBadFormat, "atlas: unsupported texture format")
)

// Config sets the dimensions every atlas texture is allocated with.
type Config struct {
	TextureWidth  int32
	TextureHeight int32
}

func DefaultConfig() Config {
	return Config{TextureWidth: 1024, TextureHeight: 1024}
}

type regionKey struct {
	tex    protocol.AtlasTextureID
	bounds protocol.AtlasBounds
}

type tileKey struct {
	tex  protocol.AtlasTextureID
	tile uint32
}

// binding is one uploaded region and the pixels backing it.
type binding struct {
	tex        protocol.AtlasTextureID
	bounds     protocol.AtlasBounds
	pixels     []byte
	generation uint64
}

// Tracker holds every bound tile of the current connection. It is owned by a
// single pipeline stage and is not safe for concurrent use.
type Tracker struct {
	cfg Config

	regions   map[regionKey]*binding
	tiles     map[tileKey]*binding
	byTexture map[protocol.AtlasTextureID][]*binding

	generation uint64
	bytes      int64
}

func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.TextureWidth <= 0 {
		cfg.TextureWidth = def.TextureWidth
	}
	if cfg.TextureHeight <= 0 {
		cfg.TextureHeight = def.TextureHeight
	}
	t := &Tracker{cfg: cfg}
	t.Reset()
	return t
}

// Rejection records an atlas entry that Apply refused.
type Rejection struct {
	Index int
	Entry protocol.AtlasTextureID
	Err   error
}

type ApplyReport struct {
	Applied  int
	Bytes    int
	Rejected []Rejection
}

// Apply binds entries in list order. A later entry for the same tile
// supersedes an earlier one. Invalid entries are rejected individually and do
// not prevent the rest from being applied.
func (t *Tracker) Apply(entries []protocol.AtlasEntry) ApplyReport {
	var rep ApplyReport
	for i := range entries {
		e := &entries[i]
		if err := t.validate(e); err != nil {
			rep.Rejected = append(rep.Rejected, Rejection{Index: i, Entry: e.TextureID, Err: err})
			continue
		}
		t.bind(e)
		rep.Applied++
		rep.Bytes += len(e.PixelData)
	}
	return rep
}

func (t *Tracker) validate(e *protocol.AtlasEntry) error {
	kind := e.TextureID.Kind
	if !kind.Valid() {
		return fmt.Errorf("%w: kind %d", ErrBadFormat, kind)
	}
	if e.Format != kind {
		return fmt.Errorf("%w: format %d on %s texture", ErrBadFormat, e.Format, kind)
	}
	b := e.Bounds
	if b.Width <= 0 || b.Height <= 0 || b.OriginX < 0 || b.OriginY < 0 ||
		int64(b.OriginX)+int64(b.Width) > int64(t.cfg.TextureWidth) ||
		int64(b.OriginY)+int64(b.Height) > int64(t.cfg.TextureHeight) {
		return fmt.Errorf("%w: %+v in %dx%d texture", ErrBoundsOutOfRange, b, t.cfg.TextureWidth, t.cfg.TextureHeight)
	}
	want := int64(b.Width) * int64(b.Height) * int64(kind.BytesPerPixel())
	if int64(len(e.PixelData)) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelDataSize, len(e.PixelData), want)
	}
	return nil
}

func (t *Tracker) bind(e *protocol.AtlasEntry) {
	t.generation++
	key := regionKey{tex: e.TextureID, bounds: e.Bounds}
	b, ok := t.regions[key]
	if ok {
		// Same texture kind and bounds imply the same pixel length.
		copy(b.pixels, e.PixelData)
	} else {
		t.evictOverlapping(e.TextureID, e.Bounds)
		b = &binding{
			tex:    e.TextureID,
			bounds: e.Bounds,
			pixels: append([]byte(nil), e.PixelData...),
		}
		t.regions[key] = b
		t.byTexture[e.TextureID] = append(t.byTexture[e.TextureID], b)
		t.bytes += int64(len(b.pixels))
	}
	b.generation = t.generation
	if e.TileID != 0 {
		t.tiles[tileKey{tex: e.TextureID, tile: e.TileID}] = b
	}
}

// evictOverlapping drops regions of tex that the new upload overwrites.
func (t *Tracker) evictOverlapping(tex protocol.AtlasTextureID, r protocol.AtlasBounds) {
	list := t.byTexture[tex]
	kept := list[:0]
	for _, b := range list {
		if !overlaps(b.bounds, r) {
			kept = append(kept, b)
			continue
		}
		delete(t.regions, regionKey{tex: tex, bounds: b.bounds})
		for k, v := range t.tiles {
			if v == b {
				delete(t.tiles, k)
			}
		}
		t.bytes -= int64(len(b.pixels))
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}
	t.byTexture[tex] = kept
}

func overlaps(a, b protocol.AtlasBounds) bool {
	return a.OriginX < b.OriginX+b.Width && b.OriginX < a.OriginX+a.Width &&
		a.OriginY < b.OriginY+b.Height && b.OriginY < a.OriginY+a.Height
}

func (t *Tracker) lookup(tile protocol.AtlasTile) *binding {
	if tile.TileID != 0 {
		if b, ok := t.tiles[tileKey{tex: tile.TextureID, tile: tile.TileID}]; ok {
			return b
		}
	}
	if b, ok := t.regions[regionKey{tex: tile.TextureID, bounds: tile.Bounds}]; ok {
		return b
	}
	list := t.byTexture[tile.TextureID]
	for i := len(list) - 1; i >= 0; i-- {
		if tile.Bounds.Within(list[i].bounds) {
			return list[i]
		}
	}
	return nil
}

// Resolve returns the pixels tile samples. The region borrows the tracker's
// backing store and is only valid until the next Apply or Reset.
func (t *Tracker) Resolve(tile protocol.AtlasTile) (PixelRegion, error) {
	b := t.lookup(tile)
	if b == nil {
		return PixelRegion{}, fmt.Errorf("%w: texture %s/%d tile %d bounds %+v",
			ErrUnknownTile, tile.TextureID.Kind, tile.TextureID.Index, tile.TileID, tile.Bounds)
	}
	if tile.Bounds.Width < 0 || tile.Bounds.Height < 0 || !tile.Bounds.Within(b.bounds) {
		return PixelRegion{}, fmt.Errorf("%w: tile %+v, region %+v", ErrTileOutOfRange, tile.Bounds, b.bounds)
	}

	// Padding is a wire value; the inset must leave a non-empty rectangle.
	pad := int64(tile.Padding)
	if tile.Padding != 0 && (2*pad >= int64(tile.Bounds.Width) || 2*pad >= int64(tile.Bounds.Height)) {
		return PixelRegion{}, fmt.Errorf("%w: padding %d exceeds tile %+v", ErrTileOutOfRange, tile.Padding, tile.Bounds)
	}
	inset := int32(pad)
	sampled := protocol.AtlasBounds{
		OriginX: tile.Bounds.OriginX + inset,
		OriginY: tile.Bounds.OriginY + inset,
		Width:   tile.Bounds.Width - 2*inset,
		Height:  tile.Bounds.Height - 2*inset,
	}
	bpp := b.tex.Kind.BytesPerPixel()
	r := PixelRegion{
		Texture:    b.tex,
		Bounds:     sampled,
		Format:     b.tex.Kind,
		Width:      int(sampled.Width),
		Height:     int(sampled.Height),
		Stride:     int(b.bounds.Width) * bpp,
		Generation: b.generation,
	}
	if r.Width > 0 && r.Height > 0 {
		off := int(sampled.OriginY-b.bounds.OriginY)*r.Stride + int(sampled.OriginX-b.bounds.OriginX)*bpp
		end := off + (r.Height-1)*r.Stride + r.Width*bpp
		r.Pixels = b.pixels[off:end:end]
	}
	return r, nil
}

// Reset forgets every binding. Called when the connection is lost.
func (t *Tracker) Reset() {
	t.regions = make(map[regionKey]*binding)
	t.tiles = make(map[tileKey]*binding)
	t.byTexture = make(map[protocol.AtlasTextureID][]*binding)
	t.bytes = 0
}

type Stats struct {
	Textures int
	Regions  int
	TileIDs  int
	Bytes    int64
}

func (t *Tracker) Stats() Stats {
	textures := 0
	for _, list := range t.byTexture {
		if len(list) > 0 {
			textures++
		}
	}
	return Stats{Textures: textures, Regions: len(t.regions), TileIDs: len(t.tiles), Bytes: t.bytes}
}
