package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		CodeTruncated,
		CodeMalformedVarint,
		CodeInvalidTag,
		CodeFrameTooLarge,
		CodeFramingDesync,
		CodeUnknownTile,
		CodeTileOutOfRange,
		CodeBoundsOutOfRange,
		CodePixelDataSize,
		CodeBadFormat,
		CodeStaleFrame,
		CodeMalformedOneof,
		CodeMalformedPrimitive,
		CodeInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeOf(t *testing.T) {
	sentinel := NewCodedError(CodeUnknownTile, "atlas: unknown tile")
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{sentinel, CodeUnknownTile},
		{fmt.Errorf("sprite 3: %w", sentinel), CodeUnknownTile},
		{fmt.Errorf("frame 9: %w", ErrStaleFrame), CodeStaleFrame},
		{ErrMalformedOneof, CodeMalformedOneof},
		{errors.New("boom"), CodeInternal},
	}
	for _, c := range cases {
		if got := CodeOf(c.err); got != c.want {
			t.Fatalf("CodeOf(%v)=%q want %q", c.err, got, c.want)
		}
	}
	if !errors.Is(fmt.Errorf("x: %w", sentinel), sentinel) {
		t.Fatalf("wrapped coded error should match its sentinel")
	}
}

func TestHslaRGB(t *testing.T) {
	cases := []struct {
		c       Hsla
		r, g, b uint8
	}{
		{Hsla{H: 0, S: 0, L: 0, A: 1}, 0, 0, 0},
		{Hsla{H: 0, S: 0, L: 1, A: 1}, 255, 255, 255},
		{Hsla{H: 0, S: 1, L: 0.5, A: 1}, 255, 0, 0},
		{Hsla{H: 1.0 / 3, S: 1, L: 0.5, A: 1}, 0, 255, 0},
		{Hsla{H: 2.0 / 3, S: 1, L: 0.5, A: 1}, 0, 0, 255},
	}
	for _, c := range cases {
		r, g, b := c.c.RGB()
		if r != c.r || g != c.g || b != c.b {
			t.Fatalf("%+v -> %d,%d,%d want %d,%d,%d", c.c, r, g, b, c.r, c.g, c.b)
		}
	}
}

func TestLinearGradientValidate(t *testing.T) {
	ok := LinearGradient{Stops: []LinearColorStop{{Percentage: 0}, {Percentage: 0.5}, {Percentage: 1}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid gradient: %v", err)
	}
	bad := []LinearGradient{
		{},
		{Stops: []LinearColorStop{{Percentage: 0.6}, {Percentage: 0.2}}},
		{Stops: []LinearColorStop{{Percentage: 1.5}}},
	}
	for i, g := range bad {
		if err := g.Validate(); !errors.Is(err, ErrMalformedPrimitive) {
			t.Fatalf("case %d: expected ErrMalformedPrimitive, got %v", i, err)
		}
	}
}

func TestAtlasBoundsWithin(t *testing.T) {
	outer := AtlasBounds{OriginX: 10, OriginY: 10, Width: 20, Height: 20}
	if !(AtlasBounds{OriginX: 12, OriginY: 12, Width: 4, Height: 4}).Within(outer) {
		t.Fatalf("inner rect should be within")
	}
	if (AtlasBounds{OriginX: 25, OriginY: 12, Width: 10, Height: 4}).Within(outer) {
		t.Fatalf("overhanging rect should not be within")
	}
	if !outer.Within(outer) {
		t.Fatalf("rect should be within itself")
	}
}
