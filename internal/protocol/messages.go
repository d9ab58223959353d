package protocol

// FrameMessage is one server -> client scene update.
type FrameMessage struct {
	FrameID         uint64       `json:"frame_id,omitempty"`
	ViewportWidth   float32      `json:"viewport_width,omitempty"`
	ViewportHeight  float32      `json:"viewport_height,omitempty"`
	ScaleFactor     float32      `json:"scale_factor,omitempty"`
	AtlasEntries    []AtlasEntry `json:"atlas_entries,omitempty"`
	Scene           SceneBody    `json:"scene"`
	BackgroundColor Hsla         `json:"background_color"`
	ThemeHints      ThemeHints   `json:"theme_hints"`
}

type ThemeHints struct {
	Appearance           string `json:"appearance,omitempty"`
	BackgroundRGB        uint32 `json:"background_rgb,omitempty"`
	BackgroundCSS        string `json:"background_css,omitempty"`
	BackgroundAppearance string `json:"background_appearance,omitempty"`
}

func (h ThemeHints) IsZero() bool { return h == ThemeHints{} }

// SceneBody groups primitives by kind; paint order comes from each
// primitive's Order, not from its position here.
type SceneBody struct {
	Shadows           []Shadow           `json:"shadows,omitempty"`
	Quads             []Quad             `json:"-"`
	Underlines        []Underline        `json:"underlines,omitempty"`
	MonochromeSprites []MonochromeSprite `json:"monochrome_sprites,omitempty"`
	SubpixelSprites   []SubpixelSprite   `json:"subpixel_sprites,omitempty"`
	PolychromeSprites []PolychromeSprite `json:"polychrome_sprites,omitempty"`
	Paths             []Path             `json:"-"`
}

// Len is the total number of primitives.
func (s *SceneBody) Len() int {
	return len(s.Shadows) + len(s.Quads) + len(s.Underlines) + len(s.MonochromeSprites) +
		len(s.SubpixelSprites) + len(s.PolychromeSprites) + len(s.Paths)
}

// PrimitiveKind values are ordered by paint rank: among primitives sharing an
// Order, lower kinds paint first.
type PrimitiveKind uint8

const (
	PrimShadow PrimitiveKind = iota
	PrimQuad
	PrimPath
	PrimUnderline
	PrimMonochromeSprite
	PrimSubpixelSprite
	PrimPolychromeSprite
)

var primitiveKindNames = [...]string{
	PrimShadow:           "shadow",
	PrimQuad:             "quad",
	PrimPath:             "path",
	PrimUnderline:        "underline",
	PrimMonochromeSprite: "monochrome_sprite",
	PrimSubpixelSprite:   "subpixel_sprite",
	PrimPolychromeSprite: "polychrome_sprite",
}

func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveKindNames) {
		return primitiveKindNames[k]
	}
	return "unknown"
}

// Primitive is implemented by the seven drawable kinds.
type Primitive interface {
	DrawOrder() uint32
	Kind() PrimitiveKind
}

type Shadow struct {
	Order       uint32      `json:"order,omitempty"`
	BlurRadius  float32     `json:"blur_radius,omitempty"`
	Bounds      Bounds      `json:"bounds"`
	CornerRadii Corners     `json:"corner_radii"`
	ContentMask ContentMask `json:"content_mask"`
	Color       Hsla        `json:"color"`
}

type Quad struct {
	Order        uint32
	BorderStyle  BorderStyle
	Bounds       Bounds
	ContentMask  ContentMask
	Background   Background
	BorderColor  Hsla
	CornerRadii  Corners
	BorderWidths Edges
}

type Underline struct {
	Order       uint32      `json:"order,omitempty"`
	Bounds      Bounds      `json:"bounds"`
	ContentMask ContentMask `json:"content_mask"`
	Color       Hsla        `json:"color"`
	Thickness   float32     `json:"thickness,omitempty"`
	Wavy        bool        `json:"wavy,omitempty"`
}

type MonochromeSprite struct {
	Order          uint32               `json:"order,omitempty"`
	Bounds         Bounds               `json:"bounds"`
	ContentMask    ContentMask          `json:"content_mask"`
	Color          Hsla                 `json:"color"`
	Tile           AtlasTile            `json:"tile"`
	Transformation TransformationMatrix `json:"transformation"`
}

type SubpixelSprite struct {
	Order          uint32               `json:"order,omitempty"`
	Bounds         Bounds               `json:"bounds"`
	ContentMask    ContentMask          `json:"content_mask"`
	Color          Hsla                 `json:"color"`
	Tile           AtlasTile            `json:"tile"`
	Transformation TransformationMatrix `json:"transformation"`
}

type PolychromeSprite struct {
	Order       uint32      `json:"order,omitempty"`
	Grayscale   bool        `json:"grayscale,omitempty"`
	Opacity     float32     `json:"opacity,omitempty"`
	Bounds      Bounds      `json:"bounds"`
	ContentMask ContentMask `json:"content_mask"`
	CornerRadii Corners     `json:"corner_radii"`
	Tile        AtlasTile   `json:"tile"`
}

type PathVertex struct {
	XYPosition  Point       `json:"xy_position"`
	STPosition  Point       `json:"st_position"`
	ContentMask ContentMask `json:"content_mask"`
}

type Path struct {
	Order       uint32
	Bounds      Bounds
	ContentMask ContentMask
	Color       Background
	Vertices    []PathVertex
}

func (p Shadow) DrawOrder() uint32           { return p.Order }
func (p Quad) DrawOrder() uint32             { return p.Order }
func (p Path) DrawOrder() uint32             { return p.Order }
func (p Underline) DrawOrder() uint32        { return p.Order }
func (p MonochromeSprite) DrawOrder() uint32 { return p.Order }
func (p SubpixelSprite) DrawOrder() uint32   { return p.Order }
func (p PolychromeSprite) DrawOrder() uint32 { return p.Order }

func (Shadow) Kind() PrimitiveKind           { return PrimShadow }
func (Quad) Kind() PrimitiveKind             { return PrimQuad }
func (Path) Kind() PrimitiveKind             { return PrimPath }
func (Underline) Kind() PrimitiveKind        { return PrimUnderline }
func (MonochromeSprite) Kind() PrimitiveKind { return PrimMonochromeSprite }
func (SubpixelSprite) Kind() PrimitiveKind   { return PrimSubpixelSprite }
func (PolychromeSprite) Kind() PrimitiveKind { return PrimPolychromeSprite }
