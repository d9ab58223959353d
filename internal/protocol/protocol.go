package protocol

const Version = "1.0"

// AtlasTextureKind selects the pixel format family of an atlas texture.
type AtlasTextureKind uint32

const (
	KindMonochrome AtlasTextureKind = 0
	KindPolychrome AtlasTextureKind = 1
	KindSubpixel   AtlasTextureKind = 2
)

func (k AtlasTextureKind) String() string {
	switch k {
	case KindMonochrome:
		return "monochrome"
	case KindPolychrome:
		return "polychrome"
	case KindSubpixel:
		return "subpixel"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known texture kinds.
func (k AtlasTextureKind) Valid() bool { return k <= KindSubpixel }

// BytesPerPixel is 1 for alpha-only monochrome textures and 4 (BGRA) otherwise.
func (k AtlasTextureKind) BytesPerPixel() int {
	if k == KindMonochrome {
		return 1
	}
	return 4
}

type ColorSpace uint32

const (
	ColorSpaceSrgb  ColorSpace = 0
	ColorSpaceOklab ColorSpace = 1
)

type BorderStyle uint32

const (
	BorderSolid  BorderStyle = 0
	BorderDashed BorderStyle = 1
)

// BackgroundTag is the wire discriminant of Background.
type BackgroundTag uint32

const (
	TagSolid          BackgroundTag = 0
	TagLinearGradient BackgroundTag = 1
	TagPatternSlash   BackgroundTag = 2
	TagCheckerboard   BackgroundTag = 3
)
