package protocol

import "fmt"

// Background fills a quad or path. A nil Background is absent on the wire.
//
// Implemented by Solid, LinearGradient, PatternSlash and Checkerboard.
type Background interface {
	Tag() BackgroundTag
	Validate() error
}

type Solid struct {
	Color Hsla
}

// LinearGradient stops must be non-empty with percentages ascending in [0,1].
type LinearGradient struct {
	Angle      float32
	ColorSpace ColorSpace
	Stops      []LinearColorStop
}

type PatternSlash struct {
	Color  Hsla
	Height float32
}

type Checkerboard struct {
	Color Hsla
	Size  float32
}

type LinearColorStop struct {
	Color      Hsla    `json:"color"`
	Percentage float32 `json:"percentage,omitempty"`
}

func (Solid) Tag() BackgroundTag          { return TagSolid }
func (LinearGradient) Tag() BackgroundTag { return TagLinearGradient }
func (PatternSlash) Tag() BackgroundTag   { return TagPatternSlash }
func (Checkerboard) Tag() BackgroundTag   { return TagCheckerboard }

func (Solid) Validate() error        { return nil }
func (PatternSlash) Validate() error { return nil }
func (Checkerboard) Validate() error { return nil }

func (g LinearGradient) Validate() error {
	if len(g.Stops) == 0 {
		return fmt.Errorf("%w: gradient without stops", ErrMalformedPrimitive)
	}
	prev := float32(0)
	for i, s := range g.Stops {
		p := s.Percentage
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: gradient stop %d percentage %v outside [0,1]", ErrMalformedPrimitive, i, p)
		}
		if p < prev {
			return fmt.Errorf("%w: gradient stop %d not ascending", ErrMalformedPrimitive, i)
		}
		prev = p
	}
	return nil
}

// PrimaryColor is the color a renderer without gradient support should use.
func PrimaryColor(bg Background) Hsla {
	switch v := bg.(type) {
	case Solid:
		return v.Color
	case LinearGradient:
		if len(v.Stops) > 0 {
			return v.Stops[0].Color
		}
	case PatternSlash:
		return v.Color
	case Checkerboard:
		return v.Color
	}
	return Hsla{}
}
