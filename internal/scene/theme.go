package scene

import (
	"fmt"

	"scenecast.dev/internal/protocol"
)

// ThemeHintsFor derives page-level color hints from a background color so a
// viewer can style its chrome without converting HSLA itself.
func ThemeHintsFor(c protocol.Hsla) protocol.ThemeHints {
	r, g, b := c.RGB()
	rgb := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	appearance := "dark"
	if c.L > 0.5 {
		appearance = "light"
	}
	return protocol.ThemeHints{
		Appearance:    appearance,
		BackgroundRGB: rgb,
		BackgroundCSS: fmt.Sprintf("#%06x", rgb),
	}
}

// WindowBackground picks the color of the largest quad, which is the
// full-window fill in practice. ok is false when there are no quads.
func WindowBackground(quads []protocol.Quad) (c protocol.Hsla, ok bool) {
	best := float32(-1)
	for i := range quads {
		q := &quads[i]
		if area := q.Bounds.Area(); area > best {
			best = area
			c = protocol.PrimaryColor(q.Background)
			ok = true
		}
	}
	return c, ok
}
