package protocol

type AtlasTextureID struct {
	Index uint32           `json:"index,omitempty"`
	Kind  AtlasTextureKind `json:"kind,omitempty"`
}

// AtlasBounds is an integer rectangle in texture pixel coordinates.
type AtlasBounds struct {
	OriginX int32 `json:"origin_x,omitempty"`
	OriginY int32 `json:"origin_y,omitempty"`
	Width   int32 `json:"width,omitempty"`
	Height  int32 `json:"height,omitempty"`
}

// Within reports whether b lies entirely inside outer.
func (b AtlasBounds) Within(outer AtlasBounds) bool {
	return b.OriginX >= outer.OriginX && b.OriginY >= outer.OriginY &&
		int64(b.OriginX)+int64(b.Width) <= int64(outer.OriginX)+int64(outer.Width) &&
		int64(b.OriginY)+int64(b.Height) <= int64(outer.OriginY)+int64(outer.Height)
}

// AtlasTile references a rectangle of a previously uploaded atlas region.
type AtlasTile struct {
	TextureID AtlasTextureID `json:"texture_id"`
	TileID    uint32         `json:"tile_id,omitempty"`
	Padding   uint32         `json:"padding,omitempty"`
	Bounds    AtlasBounds    `json:"bounds"`
}

// AtlasEntry uploads pixels for one tile. TileID is optional; entries without
// one are identified by (TextureID, Bounds).
type AtlasEntry struct {
	TextureID AtlasTextureID   `json:"texture_id"`
	Bounds    AtlasBounds      `json:"bounds"`
	Format    AtlasTextureKind `json:"format,omitempty"`
	PixelData []byte           `json:"pixel_data,omitempty"`
	TileID    uint32           `json:"tile_id,omitempty"`
}
