package scene

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/protocol"
)

// Skip describes a primitive left out of a draw list.
type Skip struct {
	Kind  protocol.PrimitiveKind
	Order uint32
	Err   error
}

// Report summarizes what Assemble did with one frame.
type Report struct {
	Atlas      atlas.ApplyReport
	Primitives int
	Skipped    []Skip
}

// Assembler applies frames to an atlas tracker and produces draw lists.
// It is not safe for concurrent use.
type Assembler struct {
	tracker *atlas.Tracker
	log     zerolog.Logger

	lastFrame uint64
	haveLast  bool
}

func NewAssembler(tracker *atlas.Tracker, log zerolog.Logger) *Assembler {
	return &Assembler{tracker: tracker, log: log}
}

// LastFrameID returns the id of the most recently accepted frame.
func (a *Assembler) LastFrameID() (uint64, bool) { return a.lastFrame, a.haveLast }

// Reset forgets the frame sequence and every atlas binding.
func (a *Assembler) Reset() {
	a.lastFrame, a.haveLast = 0, false
	a.tracker.Reset()
}

// Assemble takes ownership of f. Frames whose id does not advance past the
// last accepted one fail with protocol.ErrStaleFrame and change nothing.
// Primitives that cannot be drawn are skipped and listed in the report.
func (a *Assembler) Assemble(f *protocol.FrameMessage) (*DrawList, Report, error) {
	if a.haveLast && f.FrameID <= a.lastFrame {
		return nil, Report{}, fmt.Errorf("%w: frame %d, last applied %d", protocol.ErrStaleFrame, f.FrameID, a.lastFrame)
	}

	var rep Report
	rep.Atlas = a.tracker.Apply(f.AtlasEntries)
	for _, rj := range rep.Atlas.Rejected {
		a.log.Warn().
			Uint64("frame_id", f.FrameID).
			Int("entry", rj.Index).
			Str("code", protocol.CodeOf(rj.Err)).
			Err(rj.Err).
			Msg("atlas entry rejected")
	}

	s := &f.Scene
	items := make([]DrawItem, 0, s.Len())
	skip := func(p protocol.Primitive, err error) {
		rep.Skipped = append(rep.Skipped, Skip{Kind: p.Kind(), Order: p.DrawOrder(), Err: err})
		a.log.Debug().
			Uint64("frame_id", f.FrameID).
			Str("kind", p.Kind().String()).
			Uint32("order", p.DrawOrder()).
			Str("code", protocol.CodeOf(err)).
			Err(err).
			Msg("primitive skipped")
	}

	// Items are gathered in paint-rank order so that the stable sort below
	// keeps that order among equal draw orders.
	for i := range s.Shadows {
		items = append(items, DrawItem{Primitive: &s.Shadows[i]})
	}
	for i := range s.Quads {
		q := &s.Quads[i]
		if q.Background != nil {
			if err := q.Background.Validate(); err != nil {
				skip(q, err)
				continue
			}
		}
		items = append(items, DrawItem{Primitive: q})
	}
	for i := range s.Paths {
		p := &s.Paths[i]
		if p.Color != nil {
			if err := p.Color.Validate(); err != nil {
				skip(p, err)
				continue
			}
		}
		items = append(items, DrawItem{Primitive: p})
	}
	for i := range s.Underlines {
		items = append(items, DrawItem{Primitive: &s.Underlines[i]})
	}
	for i := range s.MonochromeSprites {
		sp := &s.MonochromeSprites[i]
		normalizeTransform(&sp.Transformation)
		if it, err := a.sprite(sp, sp.Tile); err != nil {
			skip(sp, err)
		} else {
			items = append(items, it)
		}
	}
	for i := range s.SubpixelSprites {
		sp := &s.SubpixelSprites[i]
		normalizeTransform(&sp.Transformation)
		if it, err := a.sprite(sp, sp.Tile); err != nil {
			skip(sp, err)
		} else {
			items = append(items, it)
		}
	}
	for i := range s.PolychromeSprites {
		sp := &s.PolychromeSprites[i]
		if it, err := a.sprite(sp, sp.Tile); err != nil {
			skip(sp, err)
		} else {
			items = append(items, it)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		oi, oj := items[i].Primitive.DrawOrder(), items[j].Primitive.DrawOrder()
		if oi != oj {
			return oi < oj
		}
		return items[i].Primitive.Kind() < items[j].Primitive.Kind()
	})

	rep.Primitives = len(items)
	if len(rep.Skipped) > 0 {
		a.log.Warn().
			Uint64("frame_id", f.FrameID).
			Int("skipped", len(rep.Skipped)).
			Int("drawn", len(items)).
			Msg("frame assembled with skipped primitives")
	}

	a.lastFrame, a.haveLast = f.FrameID, true
	return &DrawList{
		FrameID:     f.FrameID,
		Viewport:    protocol.Size{Width: f.ViewportWidth, Height: f.ViewportHeight},
		ScaleFactor: f.ScaleFactor,
		Background:  f.BackgroundColor,
		ThemeHints:  f.ThemeHints,
		Items:       items,
	}, rep, nil
}

func (a *Assembler) sprite(p protocol.Primitive, tile protocol.AtlasTile) (DrawItem, error) {
	r, err := a.tracker.Resolve(tile)
	if err != nil {
		return DrawItem{}, err
	}
	return DrawItem{Primitive: p, Region: &r}, nil
}

// normalizeTransform maps an absent (all-zero) matrix to the identity.
func normalizeTransform(m *protocol.TransformationMatrix) {
	if m.IsZero() {
		*m = protocol.Identity
	}
}
