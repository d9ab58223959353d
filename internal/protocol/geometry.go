package protocol

type Point struct {
	X float32 `json:"x,omitempty"`
	Y float32 `json:"y,omitempty"`
}

type Size struct {
	Width  float32 `json:"width,omitempty"`
	Height float32 `json:"height,omitempty"`
}

// Bounds is an axis-aligned rectangle in scaled pixels.
type Bounds struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}

// Contains reports whether p lies inside b (right and bottom edges exclusive).
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Origin.X && p.Y >= b.Origin.Y &&
		p.X < b.Origin.X+b.Size.Width && p.Y < b.Origin.Y+b.Size.Height
}

func (b Bounds) Area() float32 { return b.Size.Width * b.Size.Height }

type ContentMask struct {
	Bounds Bounds `json:"bounds"`
}

type Corners struct {
	TopLeft     float32 `json:"top_left,omitempty"`
	TopRight    float32 `json:"top_right,omitempty"`
	BottomRight float32 `json:"bottom_right,omitempty"`
	BottomLeft  float32 `json:"bottom_left,omitempty"`
}

type Edges struct {
	Top    float32 `json:"top,omitempty"`
	Right  float32 `json:"right,omitempty"`
	Bottom float32 `json:"bottom,omitempty"`
	Left   float32 `json:"left,omitempty"`
}

// Hsla components are all in [0,1]; hue is a fraction of a full turn.
type Hsla struct {
	H float32 `json:"h,omitempty"`
	S float32 `json:"s,omitempty"`
	L float32 `json:"l,omitempty"`
	A float32 `json:"a,omitempty"`
}

// RGB converts c to 8-bit sRGB channels, ignoring alpha.
func (c Hsla) RGB() (r, g, b uint8) {
	h := float64(c.H) * 6
	s := clamp01(float64(c.S))
	l := clamp01(float64(c.L))

	chroma := (1 - abs(2*l-1)) * s
	x := chroma * (1 - abs(mod(h, 2)-1))
	m := l - chroma/2

	var rf, gf, bf float64
	switch {
	case h < 1:
		rf, gf, bf = chroma, x, 0
	case h < 2:
		rf, gf, bf = x, chroma, 0
	case h < 3:
		rf, gf, bf = 0, chroma, x
	case h < 4:
		rf, gf, bf = 0, x, chroma
	case h < 5:
		rf, gf, bf = x, 0, chroma
	default:
		rf, gf, bf = chroma, 0, x
	}
	return to8(rf + m), to8(gf + m), to8(bf + m)
}

// TransformationMatrix is a 2x3 affine transform applied to sprite quads.
type TransformationMatrix struct {
	R00 float32 `json:"r00,omitempty"`
	R01 float32 `json:"r01,omitempty"`
	R10 float32 `json:"r10,omitempty"`
	R11 float32 `json:"r11,omitempty"`
	Tx  float32 `json:"tx,omitempty"`
	Ty  float32 `json:"ty,omitempty"`
}

var Identity = TransformationMatrix{R00: 1, R11: 1}

func (m TransformationMatrix) IsZero() bool { return m == TransformationMatrix{} }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func mod(a, b float64) float64 {
	r := a - b*float64(int64(a/b))
	if r < 0 {
		r += b
	}
	return r
}

func to8(v float64) uint8 {
	v = clamp01(v)*255 + 0.5
	return uint8(v)
}
