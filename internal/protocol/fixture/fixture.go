// Package fixture reads and writes scene frames as JSON documents. Field names
// follow the wire message field names; pixel data is base64.
package fixture

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scenecast.dev/internal/protocol"
)

//go:embed fixture.schema.json
var schemaJSON []byte

const schemaURL = "https://scenecast.dev/schemas/fixture.schema.json"

var ErrInvalid = errors.New("fixture: invalid document")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Document is the top-level fixture file.
type Document struct {
	Version     string  `json:"version,omitempty"`
	Description string  `json:"description,omitempty"`
	Frames      []Frame `json:"frames"`
}

type Frame struct {
	FrameID         uint64                `json:"frame_id,omitempty"`
	ViewportWidth   float32               `json:"viewport_width,omitempty"`
	ViewportHeight  float32               `json:"viewport_height,omitempty"`
	ScaleFactor     float32               `json:"scale_factor,omitempty"`
	AtlasEntries    []protocol.AtlasEntry `json:"atlas_entries,omitempty"`
	BackgroundColor protocol.Hsla         `json:"background_color"`
	ThemeHints      protocol.ThemeHints   `json:"theme_hints"`
	Scene           Scene                 `json:"scene"`
}

// Scene reuses the protocol JSON for every kind except quads and paths,
// whose Background needs an explicit variant key.
type Scene struct {
	protocol.SceneBody
	Quads []Quad `json:"quads,omitempty"`
	Paths []Path `json:"paths,omitempty"`
}

type Quad struct {
	Order        uint32               `json:"order,omitempty"`
	BorderStyle  protocol.BorderStyle `json:"border_style,omitempty"`
	Bounds       protocol.Bounds      `json:"bounds"`
	ContentMask  protocol.ContentMask `json:"content_mask"`
	Background   *Background          `json:"background,omitempty"`
	BorderColor  protocol.Hsla        `json:"border_color"`
	CornerRadii  protocol.Corners     `json:"corner_radii"`
	BorderWidths protocol.Edges       `json:"border_widths"`
}

type Path struct {
	Order       uint32                `json:"order,omitempty"`
	Bounds      protocol.Bounds       `json:"bounds"`
	ContentMask protocol.ContentMask  `json:"content_mask"`
	Color       *Background           `json:"color,omitempty"`
	Vertices    []protocol.PathVertex `json:"vertices,omitempty"`
}

// Background holds exactly one variant.
type Background struct {
	Solid          *Solid          `json:"solid,omitempty"`
	LinearGradient *LinearGradient `json:"linear_gradient,omitempty"`
	PatternSlash   *Pattern        `json:"pattern_slash,omitempty"`
	Checkerboard   *Checkerboard   `json:"checkerboard,omitempty"`
}

type Solid struct {
	Color protocol.Hsla `json:"color"`
}

type LinearGradient struct {
	Angle      float32                    `json:"angle,omitempty"`
	ColorSpace protocol.ColorSpace        `json:"color_space,omitempty"`
	Stops      []protocol.LinearColorStop `json:"stops"`
}

type Pattern struct {
	Color  protocol.Hsla `json:"color"`
	Height float32       `json:"height,omitempty"`
}

type Checkerboard struct {
	Color protocol.Hsla `json:"color"`
	Size  float32       `json:"size,omitempty"`
}

// Load reads and validates a fixture file.
func Load(path string) ([]protocol.FrameMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	frames, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return frames, nil
}

// Parse validates b against the fixture schema and converts it to frames.
func Parse(b []byte) ([]protocol.FrameMessage, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("fixture: compile schema: %w", err)
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	out := make([]protocol.FrameMessage, 0, len(doc.Frames))
	for _, f := range doc.Frames {
		out = append(out, f.Message())
	}
	return out, nil
}

// Encode renders frames as an indented fixture document.
func Encode(description string, frames []protocol.FrameMessage) ([]byte, error) {
	doc := Document{Version: protocol.Version, Description: description}
	for i := range frames {
		doc.Frames = append(doc.Frames, FromMessage(&frames[i]))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Message converts f to its wire form.
func (f Frame) Message() protocol.FrameMessage {
	m := protocol.FrameMessage{
		FrameID:         f.FrameID,
		ViewportWidth:   f.ViewportWidth,
		ViewportHeight:  f.ViewportHeight,
		ScaleFactor:     f.ScaleFactor,
		AtlasEntries:    f.AtlasEntries,
		BackgroundColor: f.BackgroundColor,
		ThemeHints:      f.ThemeHints,
		Scene:           f.Scene.SceneBody,
	}
	m.Scene.Quads = nil
	m.Scene.Paths = nil
	for _, q := range f.Scene.Quads {
		m.Scene.Quads = append(m.Scene.Quads, protocol.Quad{
			Order:        q.Order,
			BorderStyle:  q.BorderStyle,
			Bounds:       q.Bounds,
			ContentMask:  q.ContentMask,
			Background:   q.Background.value(),
			BorderColor:  q.BorderColor,
			CornerRadii:  q.CornerRadii,
			BorderWidths: q.BorderWidths,
		})
	}
	for _, p := range f.Scene.Paths {
		m.Scene.Paths = append(m.Scene.Paths, protocol.Path{
			Order:       p.Order,
			Bounds:      p.Bounds,
			ContentMask: p.ContentMask,
			Color:       p.Color.value(),
			Vertices:    p.Vertices,
		})
	}
	return m
}

func FromMessage(m *protocol.FrameMessage) Frame {
	f := Frame{
		FrameID:         m.FrameID,
		ViewportWidth:   m.ViewportWidth,
		ViewportHeight:  m.ViewportHeight,
		ScaleFactor:     m.ScaleFactor,
		AtlasEntries:    m.AtlasEntries,
		BackgroundColor: m.BackgroundColor,
		ThemeHints:      m.ThemeHints,
		Scene:           Scene{SceneBody: m.Scene},
	}
	f.Scene.SceneBody.Quads = nil
	f.Scene.SceneBody.Paths = nil
	for _, q := range m.Scene.Quads {
		f.Scene.Quads = append(f.Scene.Quads, Quad{
			Order:        q.Order,
			BorderStyle:  q.BorderStyle,
			Bounds:       q.Bounds,
			ContentMask:  q.ContentMask,
			Background:   backgroundJSON(q.Background),
			BorderColor:  q.BorderColor,
			CornerRadii:  q.CornerRadii,
			BorderWidths: q.BorderWidths,
		})
	}
	for _, p := range m.Scene.Paths {
		f.Scene.Paths = append(f.Scene.Paths, Path{
			Order:       p.Order,
			Bounds:      p.Bounds,
			ContentMask: p.ContentMask,
			Color:       backgroundJSON(p.Color),
			Vertices:    p.Vertices,
		})
	}
	return f
}

func (b *Background) value() protocol.Background {
	switch {
	case b == nil:
		return nil
	case b.Solid != nil:
		return protocol.Solid{Color: b.Solid.Color}
	case b.LinearGradient != nil:
		g := b.LinearGradient
		return protocol.LinearGradient{Angle: g.Angle, ColorSpace: g.ColorSpace, Stops: g.Stops}
	case b.PatternSlash != nil:
		return protocol.PatternSlash{Color: b.PatternSlash.Color, Height: b.PatternSlash.Height}
	case b.Checkerboard != nil:
		return protocol.Checkerboard{Color: b.Checkerboard.Color, Size: b.Checkerboard.Size}
	}
	return nil
}

func backgroundJSON(bg protocol.Background) *Background {
	switch v := bg.(type) {
	case protocol.Solid:
		return &Background{Solid: &Solid{Color: v.Color}}
	case protocol.LinearGradient:
		return &Background{LinearGradient: &LinearGradient{Angle: v.Angle, ColorSpace: v.ColorSpace, Stops: v.Stops}}
	case protocol.PatternSlash:
		return &Background{PatternSlash: &Pattern{Color: v.Color, Height: v.Height}}
	case protocol.Checkerboard:
		return &Background{Checkerboard: &Checkerboard{Color: v.Color, Size: v.Size}}
	}
	return nil
}
