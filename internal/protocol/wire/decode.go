package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"scenecast.dev/internal/protocol"
)

type decodeOptions struct {
	onWarning func(error)
}

// DecodeOption configures UnmarshalInput.
type DecodeOption func(*decodeOptions)

// OnWarning registers fn to receive non-fatal protocol anomalies, such as an
// InputMessage carrying more than one variant.
func OnWarning(fn func(error)) DecodeOption {
	return func(o *decodeOptions) { o.onWarning = fn }
}

// UnmarshalFrame decodes a FrameMessage. Atlas pixel data aliases b.
func UnmarshalFrame(b []byte) (*protocol.FrameMessage, error) {
	f := &protocol.FrameMessage{}
	var bgRaw, hintsRaw []byte
	d := newDecoder("FrameMessage", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case FrameFieldFrameID:
			f.FrameID, err = d.uint64(num, typ)
		case FrameFieldViewportWidth:
			f.ViewportWidth, err = d.float(num, typ)
		case FrameFieldViewportHeight:
			f.ViewportHeight, err = d.float(num, typ)
		case FrameFieldScaleFactor:
			f.ScaleFactor, err = d.float(num, typ)
		case FrameFieldAtlasEntries:
			var e protocol.AtlasEntry
			e, err = message(d, num, typ, decodeAtlasEntry)
			if err == nil {
				f.AtlasEntries = append(f.AtlasEntries, e)
			}
		case FrameFieldScene:
			// A repeated occurrence of a singular message merges into the first.
			err = mergeMessage(d, num, typ, func(raw []byte) error { return decodeSceneBody(raw, &f.Scene) })
		case FrameFieldBackgroundColor:
			f.BackgroundColor, err = mergedMessage(d, num, typ, &bgRaw, decodeHsla)
		case FrameFieldThemeHints:
			f.ThemeHints, err = mergedMessage(d, num, typ, &hintsRaw, decodeThemeHints)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// UnmarshalInput decodes an InputMessage. When several variant fields are
// present the last one wins and each replaced variant is reported through
// OnWarning as an ErrMalformedOneof.
func UnmarshalInput(b []byte, opts ...DecodeOption) (protocol.InputMessage, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	var m protocol.InputMessage
	d := newDecoder("InputMessage", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return protocol.InputMessage{}, err
		}
		var ev protocol.Input
		switch num {
		case InputFieldMouseMove:
			ev, err = message(d, num, typ, decodeMouseMove)
		case InputFieldMouseDown:
			ev, err = message(d, num, typ, decodeMouseDown)
		case InputFieldMouseUp:
			ev, err = message(d, num, typ, decodeMouseUp)
		case InputFieldScroll:
			ev, err = message(d, num, typ, decodeScroll)
		case InputFieldKeyDown:
			ev, err = message(d, num, typ, decodeKeyDown)
		case InputFieldKeyUp:
			ev, err = message(d, num, typ, decodeKeyUp)
		case InputFieldResize:
			ev, err = message(d, num, typ, decodeResize)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return protocol.InputMessage{}, err
		}
		if ev == nil {
			continue
		}
		if m.Event != nil && o.onWarning != nil {
			o.onWarning(fmt.Errorf("%w: %s replaced by %s", protocol.ErrMalformedOneof, m.Event.InputKind(), ev.InputKind()))
		}
		m.Event = ev
	}
	return m, nil
}

func mergeMessage(d *decoder, num protowire.Number, typ protowire.Type, fn func([]byte) error) error {
	raw, err := d.bytes(num, typ)
	if err != nil {
		return err
	}
	return d.nested(num, fn(raw))
}

// mergedMessage decodes a singular submessage that may occur more than once.
// Decoding the concatenated occurrences merges them field by field: scalars
// from later occurrences win and repeated fields accumulate.
func mergedMessage[T any](d *decoder, num protowire.Number, typ protowire.Type, seen *[]byte, fn func([]byte) (T, error)) (T, error) {
	var zero T
	raw, err := d.bytes(num, typ)
	if err != nil {
		return zero, err
	}
	if len(*seen) > 0 {
		raw = append(append(make([]byte, 0, len(*seen)+len(raw)), *seen...), raw...)
	}
	*seen = raw
	v, err := fn(raw)
	if err != nil {
		return zero, d.nested(num, err)
	}
	return v, nil
}

func decodeModifiers(b []byte) (m protocol.Modifiers, err error) {
	d := newDecoder("Modifiers", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return m, err
		}
		switch num {
		case 1:
			m.Control, err = d.bool(num, typ)
		case 2:
			m.Alt, err = d.bool(num, typ)
		case 3:
			m.Shift, err = d.bool(num, typ)
		case 4:
			m.Meta, err = d.bool(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func decodeMouseMove(b []byte) (protocol.Input, error) {
	var ev protocol.MouseMove
	d := newDecoder("MouseMoveInput", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			ev.Position, err = message(d, num, typ, decodePoint)
		case 2:
			ev.Modifiers, err = message(d, num, typ, decodeModifiers)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func decodeMouseDown(b []byte) (protocol.Input, error) {
	var ev protocol.MouseDown
	d := newDecoder("MouseDownInput", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			ev.Button, err = d.uint32(num, typ)
		case 2:
			ev.Position, err = message(d, num, typ, decodePoint)
		case 3:
			ev.ClickCount, err = d.uint32(num, typ)
		case 4:
			ev.Modifiers, err = message(d, num, typ, decodeModifiers)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func decodeMouseUp(b []byte) (protocol.Input, error) {
	var ev protocol.MouseUp
	d := newDecoder("MouseUpInput", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			ev.Button, err = d.uint32(num, typ)
		case 2:
			ev.Position, err = message(d, num, typ, decodePoint)
		case 3:
			ev.Modifiers, err = message(d, num, typ, decodeModifiers)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func decodeScroll(b []byte) (protocol.Input, error) {
	var ev protocol.Scroll
	d := newDecoder("ScrollInput", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			ev.Position, err = message(d, num, typ, decodePoint)
		case 2:
			ev.Delta, err = message(d, num, typ, decodePoint)
		case 3:
			ev.Modifiers, err = message(d, num, typ, decodeModifiers)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func decodeKey(msg string, b []byte) (key string, mods protocol.Modifiers, err error) {
	d := newDecoder(msg, b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return "", mods, err
		}
		switch num {
		case 1:
			key, err = d.string(num, typ)
		case 2:
			mods, err = message(d, num, typ, decodeModifiers)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return "", mods, err
		}
	}
	return key, mods, nil
}

func decodeKeyDown(b []byte) (protocol.Input, error) {
	key, mods, err := decodeKey("KeyDownInput", b)
	if err != nil {
		return nil, err
	}
	return protocol.KeyDown{Key: key, Modifiers: mods}, nil
}

func decodeKeyUp(b []byte) (protocol.Input, error) {
	key, mods, err := decodeKey("KeyUpInput", b)
	if err != nil {
		return nil, err
	}
	return protocol.KeyUp{Key: key, Modifiers: mods}, nil
}

func decodeResize(b []byte) (protocol.Input, error) {
	var ev protocol.Resize
	d := newDecoder("ResizeInput", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			ev.Size, err = message(d, num, typ, decodeSize)
		case 2:
			ev.ScaleFactor, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func decodeThemeHints(b []byte) (h protocol.ThemeHints, err error) {
	d := newDecoder("ThemeHints", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return h, err
		}
		switch num {
		case 1:
			h.Appearance, err = d.string(num, typ)
		case 2:
			h.BackgroundRGB, err = d.uint32(num, typ)
		case 3:
			h.BackgroundCSS, err = d.string(num, typ)
		case 4:
			h.BackgroundAppearance, err = d.string(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return h, err
		}
	}
	return h, nil
}

func decodeSceneBody(b []byte, s *protocol.SceneBody) error {
	d := newDecoder("SceneBody", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var p protocol.Shadow
			if p, err = message(d, num, typ, decodeShadow); err == nil {
				s.Shadows = append(s.Shadows, p)
			}
		case 2:
			var p protocol.Quad
			if p, err = message(d, num, typ, decodeQuad); err == nil {
				s.Quads = append(s.Quads, p)
			}
		case 3:
			var p protocol.Underline
			if p, err = message(d, num, typ, decodeUnderline); err == nil {
				s.Underlines = append(s.Underlines, p)
			}
		case 4:
			var sp sprite
			if sp, err = message(d, num, typ, decodeSprite("MonochromeSprite")); err == nil {
				s.MonochromeSprites = append(s.MonochromeSprites, protocol.MonochromeSprite(sp))
			}
		case 5:
			var sp sprite
			if sp, err = message(d, num, typ, decodeSprite("SubpixelSprite")); err == nil {
				s.SubpixelSprites = append(s.SubpixelSprites, protocol.SubpixelSprite(sp))
			}
		case 6:
			var p protocol.PolychromeSprite
			if p, err = message(d, num, typ, decodePolychrome); err == nil {
				s.PolychromeSprites = append(s.PolychromeSprites, p)
			}
		case 7:
			var p protocol.Path
			if p, err = message(d, num, typ, decodePath); err == nil {
				s.Paths = append(s.Paths, p)
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func decodePoint(b []byte) (p protocol.Point, err error) {
	d := newDecoder("Point", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.X, err = d.float(num, typ)
		case 2:
			p.Y, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodeSize(b []byte) (s protocol.Size, err error) {
	d := newDecoder("Size", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return s, err
		}
		switch num {
		case 1:
			s.Width, err = d.float(num, typ)
		case 2:
			s.Height, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func decodeBounds(b []byte) (r protocol.Bounds, err error) {
	d := newDecoder("Bounds", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return r, err
		}
		switch num {
		case 1:
			r.Origin, err = message(d, num, typ, decodePoint)
		case 2:
			r.Size, err = message(d, num, typ, decodeSize)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func decodeContentMask(b []byte) (m protocol.ContentMask, err error) {
	d := newDecoder("ContentMask", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return m, err
		}
		switch num {
		case 1:
			m.Bounds, err = message(d, num, typ, decodeBounds)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func decodeCorners(b []byte) (c protocol.Corners, err error) {
	d := newDecoder("Corners", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return c, err
		}
		switch num {
		case 1:
			c.TopLeft, err = d.float(num, typ)
		case 2:
			c.TopRight, err = d.float(num, typ)
		case 3:
			c.BottomRight, err = d.float(num, typ)
		case 4:
			c.BottomLeft, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func decodeEdges(b []byte) (e protocol.Edges, err error) {
	d := newDecoder("Edges", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return e, err
		}
		switch num {
		case 1:
			e.Top, err = d.float(num, typ)
		case 2:
			e.Right, err = d.float(num, typ)
		case 3:
			e.Bottom, err = d.float(num, typ)
		case 4:
			e.Left, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return e, err
		}
	}
	return e, nil
}

func decodeHsla(b []byte) (c protocol.Hsla, err error) {
	d := newDecoder("Hsla", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return c, err
		}
		switch num {
		case 1:
			c.H, err = d.float(num, typ)
		case 2:
			c.S, err = d.float(num, typ)
		case 3:
			c.L, err = d.float(num, typ)
		case 4:
			c.A, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func decodeTransformation(b []byte) (m protocol.TransformationMatrix, err error) {
	d := newDecoder("TransformationMatrix", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return m, err
		}
		switch num {
		case 1:
			m.R00, err = d.float(num, typ)
		case 2:
			m.R01, err = d.float(num, typ)
		case 3:
			m.R10, err = d.float(num, typ)
		case 4:
			m.R11, err = d.float(num, typ)
		case 5:
			m.Tx, err = d.float(num, typ)
		case 6:
			m.Ty, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func decodeColorStop(b []byte) (s protocol.LinearColorStop, err error) {
	d := newDecoder("LinearColorStop", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return s, err
		}
		switch num {
		case 1:
			s.Color, err = message(d, num, typ, decodeHsla)
		case 2:
			s.Percentage, err = d.float(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

// decodeBackground builds the variant selected by the tag field. Fields that
// the variant does not carry are dropped; unknown tags degrade to Solid.
func decodeBackground(b []byte) (protocol.Background, error) {
	var (
		tag        protocol.BackgroundTag
		colorSpace protocol.ColorSpace
		solid      protocol.Hsla
		param      float32
		stops      []protocol.LinearColorStop
	)
	d := newDecoder("Background", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			var v uint32
			v, err = d.uint32(num, typ)
			tag = protocol.BackgroundTag(v)
		case 2:
			var v uint32
			v, err = d.uint32(num, typ)
			colorSpace = protocol.ColorSpace(v)
		case 3:
			solid, err = message(d, num, typ, decodeHsla)
		case 4:
			param, err = d.float(num, typ)
		case 5:
			var s protocol.LinearColorStop
			if s, err = message(d, num, typ, decodeColorStop); err == nil {
				stops = append(stops, s)
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	switch tag {
	case protocol.TagLinearGradient:
		return protocol.LinearGradient{Angle: param, ColorSpace: colorSpace, Stops: stops}, nil
	case protocol.TagPatternSlash:
		return protocol.PatternSlash{Color: solid, Height: param}, nil
	case protocol.TagCheckerboard:
		return protocol.Checkerboard{Color: solid, Size: param}, nil
	default:
		return protocol.Solid{Color: solid}, nil
	}
}

func decodeTextureID(b []byte) (id protocol.AtlasTextureID, err error) {
	d := newDecoder("AtlasTextureId", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return id, err
		}
		switch num {
		case 1:
			id.Index, err = d.uint32(num, typ)
		case 2:
			var v uint32
			v, err = d.uint32(num, typ)
			id.Kind = protocol.AtlasTextureKind(v)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return id, err
		}
	}
	return id, nil
}

func decodeAtlasBounds(b []byte) (r protocol.AtlasBounds, err error) {
	d := newDecoder("AtlasBounds", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return r, err
		}
		switch num {
		case 1:
			r.OriginX, err = d.int32(num, typ)
		case 2:
			r.OriginY, err = d.int32(num, typ)
		case 3:
			r.Width, err = d.int32(num, typ)
		case 4:
			r.Height, err = d.int32(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func decodeAtlasTile(b []byte) (t protocol.AtlasTile, err error) {
	d := newDecoder("AtlasTile", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return t, err
		}
		switch num {
		case 1:
			t.TextureID, err = message(d, num, typ, decodeTextureID)
		case 2:
			t.TileID, err = d.uint32(num, typ)
		case 3:
			t.Padding, err = d.uint32(num, typ)
		case 4:
			t.Bounds, err = message(d, num, typ, decodeAtlasBounds)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func decodeAtlasEntry(b []byte) (e protocol.AtlasEntry, err error) {
	d := newDecoder("AtlasEntry", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return e, err
		}
		switch num {
		case 1:
			e.TextureID, err = message(d, num, typ, decodeTextureID)
		case 2:
			e.Bounds, err = message(d, num, typ, decodeAtlasBounds)
		case 3:
			var v uint32
			v, err = d.uint32(num, typ)
			e.Format = protocol.AtlasTextureKind(v)
		case 4:
			e.PixelData, err = d.bytes(num, typ)
		case 5:
			e.TileID, err = d.uint32(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return e, err
		}
	}
	return e, nil
}

func decodeShadow(b []byte) (p protocol.Shadow, err error) {
	d := newDecoder("Shadow", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.Order, err = d.uint32(num, typ)
		case 2:
			p.BlurRadius, err = d.float(num, typ)
		case 3:
			p.Bounds, err = message(d, num, typ, decodeBounds)
		case 4:
			p.CornerRadii, err = message(d, num, typ, decodeCorners)
		case 5:
			p.ContentMask, err = message(d, num, typ, decodeContentMask)
		case 6:
			p.Color, err = message(d, num, typ, decodeHsla)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodeQuad(b []byte) (p protocol.Quad, err error) {
	d := newDecoder("Quad", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.Order, err = d.uint32(num, typ)
		case 2:
			var v uint32
			v, err = d.uint32(num, typ)
			p.BorderStyle = protocol.BorderStyle(v)
		case 3:
			p.Bounds, err = message(d, num, typ, decodeBounds)
		case 4:
			p.ContentMask, err = message(d, num, typ, decodeContentMask)
		case 5:
			p.Background, err = message(d, num, typ, decodeBackground)
		case 6:
			p.BorderColor, err = message(d, num, typ, decodeHsla)
		case 7:
			p.CornerRadii, err = message(d, num, typ, decodeCorners)
		case 8:
			p.BorderWidths, err = message(d, num, typ, decodeEdges)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodeUnderline(b []byte) (p protocol.Underline, err error) {
	d := newDecoder("Underline", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.Order, err = d.uint32(num, typ)
		case 2:
			p.Bounds, err = message(d, num, typ, decodeBounds)
		case 3:
			p.ContentMask, err = message(d, num, typ, decodeContentMask)
		case 4:
			p.Color, err = message(d, num, typ, decodeHsla)
		case 5:
			p.Thickness, err = d.float(num, typ)
		case 6:
			p.Wavy, err = d.bool(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// sprite has the shared layout of MonochromeSprite and SubpixelSprite.
type sprite struct {
	Order          uint32
	Bounds         protocol.Bounds
	ContentMask    protocol.ContentMask
	Color          protocol.Hsla
	Tile           protocol.AtlasTile
	Transformation protocol.TransformationMatrix
}

func decodeSprite(msg string) func([]byte) (sprite, error) {
	return func(b []byte) (p sprite, err error) {
		d := newDecoder(msg, b)
		for !d.done() {
			num, typ, err := d.next()
			if err != nil {
				return p, err
			}
			switch num {
			case 1:
				p.Order, err = d.uint32(num, typ)
			case 2:
				p.Bounds, err = message(d, num, typ, decodeBounds)
			case 3:
				p.ContentMask, err = message(d, num, typ, decodeContentMask)
			case 4:
				p.Color, err = message(d, num, typ, decodeHsla)
			case 5:
				p.Tile, err = message(d, num, typ, decodeAtlasTile)
			case 6:
				p.Transformation, err = message(d, num, typ, decodeTransformation)
			default:
				err = d.skip(num, typ)
			}
			if err != nil {
				return p, err
			}
		}
		return p, nil
	}
}

func decodePolychrome(b []byte) (p protocol.PolychromeSprite, err error) {
	d := newDecoder("PolychromeSprite", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.Order, err = d.uint32(num, typ)
		case 2:
			p.Grayscale, err = d.bool(num, typ)
		case 3:
			p.Opacity, err = d.float(num, typ)
		case 4:
			p.Bounds, err = message(d, num, typ, decodeBounds)
		case 5:
			p.ContentMask, err = message(d, num, typ, decodeContentMask)
		case 6:
			p.CornerRadii, err = message(d, num, typ, decodeCorners)
		case 7:
			p.Tile, err = message(d, num, typ, decodeAtlasTile)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodePathVertex(b []byte) (v protocol.PathVertex, err error) {
	d := newDecoder("PathVertex", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return v, err
		}
		switch num {
		case 1:
			v.XYPosition, err = message(d, num, typ, decodePoint)
		case 2:
			v.STPosition, err = message(d, num, typ, decodePoint)
		case 3:
			v.ContentMask, err = message(d, num, typ, decodeContentMask)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return v, err
		}
	}
	return v, nil
}

func decodePath(b []byte) (p protocol.Path, err error) {
	d := newDecoder("Path", b)
	for !d.done() {
		num, typ, err := d.next()
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.Order, err = d.uint32(num, typ)
		case 2:
			p.Bounds, err = message(d, num, typ, decodeBounds)
		case 3:
			p.ContentMask, err = message(d, num, typ, decodeContentMask)
		case 4:
			p.Color, err = message(d, num, typ, decodeBackground)
		case 5:
			var v protocol.PathVertex
			if v, err = message(d, num, typ, decodePathVertex); err == nil {
				p.Vertices = append(p.Vertices, v)
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}
