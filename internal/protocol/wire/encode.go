package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"scenecast.dev/internal/protocol"
)

// FrameMessage field numbers.
const (
	FrameFieldFrameID         protowire.Number = 1
	FrameFieldViewportWidth   protowire.Number = 2
	FrameFieldViewportHeight  protowire.Number = 3
	FrameFieldScaleFactor     protowire.Number = 4
	FrameFieldAtlasEntries    protowire.Number = 5
	FrameFieldScene           protowire.Number = 6
	FrameFieldBackgroundColor protowire.Number = 7
	FrameFieldThemeHints      protowire.Number = 8
)

// InputMessage variant field numbers.
const (
	InputFieldMouseMove protowire.Number = 1
	InputFieldMouseDown protowire.Number = 2
	InputFieldMouseUp   protowire.Number = 3
	InputFieldScroll    protowire.Number = 4
	InputFieldKeyDown   protowire.Number = 5
	InputFieldKeyUp     protowire.Number = 6
	InputFieldResize    protowire.Number = 7
)

// MarshalFrame encodes f. Fields are written in ascending field-number order.
func MarshalFrame(f *protocol.FrameMessage) []byte {
	return AppendFrame(nil, f)
}

// AppendFrame appends the encoding of f to b.
func AppendFrame(b []byte, f *protocol.FrameMessage) []byte {
	b = appendUint(b, FrameFieldFrameID, f.FrameID)
	b = appendFloat(b, FrameFieldViewportWidth, f.ViewportWidth)
	b = appendFloat(b, FrameFieldViewportHeight, f.ViewportHeight)
	b = appendFloat(b, FrameFieldScaleFactor, f.ScaleFactor)
	for i := range f.AtlasEntries {
		e := &f.AtlasEntries[i]
		b = appendMessage(b, FrameFieldAtlasEntries, true, func(b []byte) []byte { return appendAtlasEntry(b, e) })
	}
	b = appendMessage(b, FrameFieldScene, false, func(b []byte) []byte { return appendSceneBody(b, &f.Scene) })
	b = appendMessage(b, FrameFieldBackgroundColor, false, func(b []byte) []byte { return appendHsla(b, f.BackgroundColor) })
	b = appendMessage(b, FrameFieldThemeHints, false, func(b []byte) []byte { return appendThemeHints(b, f.ThemeHints) })
	return b
}

// MarshalInput encodes m. Exactly one variant field is written; a nil event
// encodes as an empty message.
func MarshalInput(m protocol.InputMessage) []byte {
	return AppendInput(nil, m)
}

func AppendInput(b []byte, m protocol.InputMessage) []byte {
	switch ev := m.Event.(type) {
	case protocol.MouseMove:
		b = appendMessage(b, InputFieldMouseMove, true, func(b []byte) []byte {
			b = appendPoint(b, 1, ev.Position)
			return appendModifiers(b, 2, ev.Modifiers)
		})
	case protocol.MouseDown:
		b = appendMessage(b, InputFieldMouseDown, true, func(b []byte) []byte {
			b = appendUint(b, 1, uint64(ev.Button))
			b = appendPoint(b, 2, ev.Position)
			b = appendUint(b, 3, uint64(ev.ClickCount))
			return appendModifiers(b, 4, ev.Modifiers)
		})
	case protocol.MouseUp:
		b = appendMessage(b, InputFieldMouseUp, true, func(b []byte) []byte {
			b = appendUint(b, 1, uint64(ev.Button))
			b = appendPoint(b, 2, ev.Position)
			return appendModifiers(b, 3, ev.Modifiers)
		})
	case protocol.Scroll:
		b = appendMessage(b, InputFieldScroll, true, func(b []byte) []byte {
			b = appendPoint(b, 1, ev.Position)
			b = appendPoint(b, 2, ev.Delta)
			return appendModifiers(b, 3, ev.Modifiers)
		})
	case protocol.KeyDown:
		b = appendMessage(b, InputFieldKeyDown, true, func(b []byte) []byte {
			b = appendString(b, 1, ev.Key)
			return appendModifiers(b, 2, ev.Modifiers)
		})
	case protocol.KeyUp:
		b = appendMessage(b, InputFieldKeyUp, true, func(b []byte) []byte {
			b = appendString(b, 1, ev.Key)
			return appendModifiers(b, 2, ev.Modifiers)
		})
	case protocol.Resize:
		b = appendMessage(b, InputFieldResize, true, func(b []byte) []byte {
			b = appendSize(b, 1, ev.Size)
			return appendFloat(b, 2, ev.ScaleFactor)
		})
	}
	return b
}

func appendModifiers(b []byte, num protowire.Number, m protocol.Modifiers) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendBool(b, 1, m.Control)
		b = appendBool(b, 2, m.Alt)
		b = appendBool(b, 3, m.Shift)
		return appendBool(b, 4, m.Meta)
	})
}

func appendThemeHints(b []byte, h protocol.ThemeHints) []byte {
	b = appendString(b, 1, h.Appearance)
	b = appendUint(b, 2, uint64(h.BackgroundRGB))
	b = appendString(b, 3, h.BackgroundCSS)
	return appendString(b, 4, h.BackgroundAppearance)
}

func appendSceneBody(b []byte, s *protocol.SceneBody) []byte {
	for i := range s.Shadows {
		p := &s.Shadows[i]
		b = appendMessage(b, 1, true, func(b []byte) []byte { return appendShadow(b, p) })
	}
	for i := range s.Quads {
		p := &s.Quads[i]
		b = appendMessage(b, 2, true, func(b []byte) []byte { return appendQuad(b, p) })
	}
	for i := range s.Underlines {
		p := &s.Underlines[i]
		b = appendMessage(b, 3, true, func(b []byte) []byte { return appendUnderline(b, p) })
	}
	for i := range s.MonochromeSprites {
		p := &s.MonochromeSprites[i]
		b = appendMessage(b, 4, true, func(b []byte) []byte {
			return appendSprite(b, p.Order, p.Bounds, p.ContentMask, p.Color, p.Tile, p.Transformation)
		})
	}
	for i := range s.SubpixelSprites {
		p := &s.SubpixelSprites[i]
		b = appendMessage(b, 5, true, func(b []byte) []byte {
			return appendSprite(b, p.Order, p.Bounds, p.ContentMask, p.Color, p.Tile, p.Transformation)
		})
	}
	for i := range s.PolychromeSprites {
		p := &s.PolychromeSprites[i]
		b = appendMessage(b, 6, true, func(b []byte) []byte { return appendPolychrome(b, p) })
	}
	for i := range s.Paths {
		p := &s.Paths[i]
		b = appendMessage(b, 7, true, func(b []byte) []byte { return appendPath(b, p) })
	}
	return b
}

func appendPoint(b []byte, num protowire.Number, p protocol.Point) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendFloat(b, 1, p.X)
		return appendFloat(b, 2, p.Y)
	})
}

func appendSize(b []byte, num protowire.Number, s protocol.Size) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendFloat(b, 1, s.Width)
		return appendFloat(b, 2, s.Height)
	})
}

func appendBounds(b []byte, num protowire.Number, r protocol.Bounds) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendPoint(b, 1, r.Origin)
		return appendSize(b, 2, r.Size)
	})
}

func appendContentMask(b []byte, num protowire.Number, m protocol.ContentMask) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		return appendBounds(b, 1, m.Bounds)
	})
}

func appendCorners(b []byte, num protowire.Number, c protocol.Corners) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendFloat(b, 1, c.TopLeft)
		b = appendFloat(b, 2, c.TopRight)
		b = appendFloat(b, 3, c.BottomRight)
		return appendFloat(b, 4, c.BottomLeft)
	})
}

func appendEdges(b []byte, num protowire.Number, e protocol.Edges) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendFloat(b, 1, e.Top)
		b = appendFloat(b, 2, e.Right)
		b = appendFloat(b, 3, e.Bottom)
		return appendFloat(b, 4, e.Left)
	})
}

func appendHsla(b []byte, c protocol.Hsla) []byte {
	b = appendFloat(b, 1, c.H)
	b = appendFloat(b, 2, c.S)
	b = appendFloat(b, 3, c.L)
	return appendFloat(b, 4, c.A)
}

func appendColor(b []byte, num protowire.Number, c protocol.Hsla) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte { return appendHsla(b, c) })
}

func appendTransformation(b []byte, num protowire.Number, m protocol.TransformationMatrix) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendFloat(b, 1, m.R00)
		b = appendFloat(b, 2, m.R01)
		b = appendFloat(b, 3, m.R10)
		b = appendFloat(b, 4, m.R11)
		b = appendFloat(b, 5, m.Tx)
		return appendFloat(b, 6, m.Ty)
	})
}

// appendBackground writes bg when non-nil, even if every field is zero, so
// that presence survives a round trip.
func appendBackground(b []byte, num protowire.Number, bg protocol.Background) []byte {
	if bg == nil {
		return b
	}
	return appendMessage(b, num, true, func(b []byte) []byte {
		b = appendUint(b, 1, uint64(bg.Tag()))
		switch v := bg.(type) {
		case protocol.Solid:
			b = appendColor(b, 3, v.Color)
		case protocol.LinearGradient:
			b = appendUint(b, 2, uint64(v.ColorSpace))
			b = appendFloat(b, 4, v.Angle)
			for _, s := range v.Stops {
				s := s
				b = appendMessage(b, 5, true, func(b []byte) []byte {
					b = appendColor(b, 1, s.Color)
					return appendFloat(b, 2, s.Percentage)
				})
			}
		case protocol.PatternSlash:
			b = appendColor(b, 3, v.Color)
			b = appendFloat(b, 4, v.Height)
		case protocol.Checkerboard:
			b = appendColor(b, 3, v.Color)
			b = appendFloat(b, 4, v.Size)
		}
		return b
	})
}

func appendTextureID(b []byte, num protowire.Number, id protocol.AtlasTextureID) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendUint(b, 1, uint64(id.Index))
		return appendUint(b, 2, uint64(id.Kind))
	})
}

func appendAtlasBounds(b []byte, num protowire.Number, r protocol.AtlasBounds) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendInt32(b, 1, r.OriginX)
		b = appendInt32(b, 2, r.OriginY)
		b = appendInt32(b, 3, r.Width)
		return appendInt32(b, 4, r.Height)
	})
}

func appendAtlasTile(b []byte, num protowire.Number, t protocol.AtlasTile) []byte {
	return appendMessage(b, num, false, func(b []byte) []byte {
		b = appendTextureID(b, 1, t.TextureID)
		b = appendUint(b, 2, uint64(t.TileID))
		b = appendUint(b, 3, uint64(t.Padding))
		return appendAtlasBounds(b, 4, t.Bounds)
	})
}

func appendAtlasEntry(b []byte, e *protocol.AtlasEntry) []byte {
	b = appendTextureID(b, 1, e.TextureID)
	b = appendAtlasBounds(b, 2, e.Bounds)
	b = appendUint(b, 3, uint64(e.Format))
	b = appendBytes(b, 4, e.PixelData)
	return appendUint(b, 5, uint64(e.TileID))
}

func appendShadow(b []byte, p *protocol.Shadow) []byte {
	b = appendUint(b, 1, uint64(p.Order))
	b = appendFloat(b, 2, p.BlurRadius)
	b = appendBounds(b, 3, p.Bounds)
	b = appendCorners(b, 4, p.CornerRadii)
	b = appendContentMask(b, 5, p.ContentMask)
	return appendColor(b, 6, p.Color)
}

func appendQuad(b []byte, p *protocol.Quad) []byte {
	b = appendUint(b, 1, uint64(p.Order))
	b = appendUint(b, 2, uint64(p.BorderStyle))
	b = appendBounds(b, 3, p.Bounds)
	b = appendContentMask(b, 4, p.ContentMask)
	b = appendBackground(b, 5, p.Background)
	b = appendColor(b, 6, p.BorderColor)
	b = appendCorners(b, 7, p.CornerRadii)
	return appendEdges(b, 8, p.BorderWidths)
}

func appendUnderline(b []byte, p *protocol.Underline) []byte {
	b = appendUint(b, 1, uint64(p.Order))
	b = appendBounds(b, 2, p.Bounds)
	b = appendContentMask(b, 3, p.ContentMask)
	b = appendColor(b, 4, p.Color)
	b = appendFloat(b, 5, p.Thickness)
	return appendBool(b, 6, p.Wavy)
}

// appendSprite serves both monochrome and subpixel sprites, which share a layout.
func appendSprite(b []byte, order uint32, bounds protocol.Bounds, mask protocol.ContentMask, color protocol.Hsla, tile protocol.AtlasTile, m protocol.TransformationMatrix) []byte {
	b = appendUint(b, 1, uint64(order))
	b = appendBounds(b, 2, bounds)
	b = appendContentMask(b, 3, mask)
	b = appendColor(b, 4, color)
	b = appendAtlasTile(b, 5, tile)
	return appendTransformation(b, 6, m)
}

func appendPolychrome(b []byte, p *protocol.PolychromeSprite) []byte {
	b = appendUint(b, 1, uint64(p.Order))
	b = appendBool(b, 2, p.Grayscale)
	b = appendFloat(b, 3, p.Opacity)
	b = appendBounds(b, 4, p.Bounds)
	b = appendContentMask(b, 5, p.ContentMask)
	b = appendCorners(b, 6, p.CornerRadii)
	return appendAtlasTile(b, 7, p.Tile)
}

func appendPath(b []byte, p *protocol.Path) []byte {
	b = appendUint(b, 1, uint64(p.Order))
	b = appendBounds(b, 2, p.Bounds)
	b = appendContentMask(b, 3, p.ContentMask)
	b = appendBackground(b, 4, p.Color)
	for i := range p.Vertices {
		v := &p.Vertices[i]
		b = appendMessage(b, 5, true, func(b []byte) []byte {
			b = appendPoint(b, 1, v.XYPosition)
			b = appendPoint(b, 2, v.STPosition)
			return appendContentMask(b, 3, v.ContentMask)
		})
	}
	return b
}
