package scene

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
)

var glyphTex = protocol.AtlasTextureID{Index: 0, Kind: protocol.KindMonochrome}

func newAssembler() *Assembler {
	return NewAssembler(atlas.NewTracker(atlas.DefaultConfig()), zerolog.Nop())
}

func glyphEntry(tileID uint32, b protocol.AtlasBounds) protocol.AtlasEntry {
	return protocol.AtlasEntry{
		TextureID: glyphTex,
		Bounds:    b,
		Format:    protocol.KindMonochrome,
		PixelData: make([]byte, b.Width*b.Height),
		TileID:    tileID,
	}
}

func TestStaleFramesDropped(t *testing.T) {
	a := newAssembler()
	var accepted []uint64
	for _, id := range []uint64{5, 5, 4, 6} {
		list, _, err := a.Assemble(&protocol.FrameMessage{FrameID: id})
		if err != nil {
			if !errors.Is(err, protocol.ErrStaleFrame) {
				t.Fatalf("frame %d: unexpected error %v", id, err)
			}
			continue
		}
		accepted = append(accepted, list.FrameID)
	}
	if len(accepted) != 2 || accepted[0] != 5 || accepted[1] != 6 {
		t.Fatalf("accepted=%v want [5 6]", accepted)
	}
}

func TestStaleFrameLeavesAtlasUntouched(t *testing.T) {
	a := newAssembler()
	if _, _, err := a.Assemble(&protocol.FrameMessage{FrameID: 3}); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b := protocol.AtlasBounds{Width: 2, Height: 2}
	_, _, err := a.Assemble(&protocol.FrameMessage{FrameID: 2, AtlasEntries: []protocol.AtlasEntry{glyphEntry(1, b)}})
	if !errors.Is(err, protocol.ErrStaleFrame) {
		t.Fatalf("expected stale, got %v", err)
	}
	if st := a.tracker.Stats(); st.Regions != 0 {
		t.Fatalf("stale frame applied atlas entries: %+v", st)
	}
}

func TestUnknownTileSkipped(t *testing.T) {
	a := newAssembler()
	known := protocol.AtlasBounds{Width: 4, Height: 4}
	f := &protocol.FrameMessage{
		FrameID:      1,
		AtlasEntries: []protocol.AtlasEntry{glyphEntry(1, known)},
		Scene: protocol.SceneBody{
			Quads: []protocol.Quad{{Order: 1}},
			MonochromeSprites: []protocol.MonochromeSprite{
				{Order: 2, Tile: protocol.AtlasTile{TextureID: glyphTex, TileID: 1, Bounds: known}},
				{Order: 3, Tile: protocol.AtlasTile{TextureID: glyphTex, TileID: 2, Bounds: protocol.AtlasBounds{OriginX: 100, Width: 4, Height: 4}}},
			},
		},
	}
	list, rep, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(list.Items) != 2 || rep.Primitives != 2 {
		t.Fatalf("items=%d primitives=%d", len(list.Items), rep.Primitives)
	}
	if len(rep.Skipped) != 1 || !errors.Is(rep.Skipped[0].Err, atlas.ErrUnknownTile) || rep.Skipped[0].Order != 3 {
		t.Fatalf("skipped=%+v", rep.Skipped)
	}
	if list.Items[1].Region == nil || list.Items[1].Region.Width != 4 {
		t.Fatalf("sprite region not resolved: %+v", list.Items[1])
	}
	if list.Items[0].Region != nil {
		t.Fatalf("quad should carry no region")
	}
}

func TestOversizedPaddingSkipsSprite(t *testing.T) {
	a := newAssembler()
	known := protocol.AtlasBounds{Width: 4, Height: 4}
	in := &protocol.FrameMessage{
		FrameID:      1,
		AtlasEntries: []protocol.AtlasEntry{glyphEntry(7, known)},
		Scene: protocol.SceneBody{
			Quads: []protocol.Quad{{Order: 1}},
			MonochromeSprites: []protocol.MonochromeSprite{
				{Order: 2, Tile: protocol.AtlasTile{TextureID: glyphTex, TileID: 7, Padding: 0xFFFFFFFF, Bounds: known}},
				{Order: 3, Tile: protocol.AtlasTile{TextureID: glyphTex, TileID: 7, Padding: 0x7FFFFFFF, Bounds: known}},
			},
		},
	}
	f, err := wire.UnmarshalFrame(wire.MarshalFrame(in))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	list, rep, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Primitive.Kind() != protocol.PrimQuad {
		t.Fatalf("items=%+v", list.Items)
	}
	if len(rep.Skipped) != 2 {
		t.Fatalf("skipped=%+v", rep.Skipped)
	}
	for _, s := range rep.Skipped {
		if !errors.Is(s.Err, atlas.ErrTileOutOfRange) {
			t.Fatalf("skip reason=%v", s.Err)
		}
	}
}

func TestDrawOrderStableMerge(t *testing.T) {
	a := newAssembler()
	tile := protocol.AtlasTile{TextureID: glyphTex, Bounds: protocol.AtlasBounds{Width: 1, Height: 1}}
	f := &protocol.FrameMessage{
		FrameID:      1,
		AtlasEntries: []protocol.AtlasEntry{glyphEntry(0, tile.Bounds)},
		Scene: protocol.SceneBody{
			Shadows:           []protocol.Shadow{{Order: 2, BlurRadius: 1}},
			Quads:             []protocol.Quad{{Order: 2, BorderStyle: protocol.BorderDashed}, {Order: 1}, {Order: 2}},
			Underlines:        []protocol.Underline{{Order: 0}},
			PolychromeSprites: []protocol.PolychromeSprite{{Order: 1, Tile: protocol.AtlasTile{TextureID: protocol.AtlasTextureID{Kind: protocol.KindPolychrome}}}},
			MonochromeSprites: []protocol.MonochromeSprite{{Order: 1, Tile: tile}},
			Paths:             []protocol.Path{{Order: 1}},
		},
	}
	list, rep, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	// The polychrome sprite references nothing bound.
	if len(rep.Skipped) != 1 || rep.Skipped[0].Kind != protocol.PrimPolychromeSprite {
		t.Fatalf("skipped=%+v", rep.Skipped)
	}
	want := []struct {
		kind  protocol.PrimitiveKind
		order uint32
	}{
		{protocol.PrimUnderline, 0},
		{protocol.PrimQuad, 1},
		{protocol.PrimPath, 1},
		{protocol.PrimMonochromeSprite, 1},
		{protocol.PrimShadow, 2},
		{protocol.PrimQuad, 2},
		{protocol.PrimQuad, 2},
	}
	if len(list.Items) != len(want) {
		t.Fatalf("items=%d want %d", len(list.Items), len(want))
	}
	for i, w := range want {
		p := list.Items[i].Primitive
		if p.Kind() != w.kind || p.DrawOrder() != w.order {
			t.Fatalf("item %d: %s/%d want %s/%d", i, p.Kind(), p.DrawOrder(), w.kind, w.order)
		}
	}
	// Same kind and order keep their source order.
	if q := list.Items[5].Primitive.(*protocol.Quad); q.BorderStyle != protocol.BorderDashed {
		t.Fatalf("equal-order quads reordered")
	}
	for i := 1; i < len(list.Items); i++ {
		if list.Items[i-1].Primitive.DrawOrder() > list.Items[i].Primitive.DrawOrder() {
			t.Fatalf("draw list not ordered at %d", i)
		}
	}
}

func TestMalformedGradientSkipped(t *testing.T) {
	a := newAssembler()
	f := &protocol.FrameMessage{
		FrameID: 1,
		Scene: protocol.SceneBody{
			Quads: []protocol.Quad{
				{Order: 1, Background: protocol.LinearGradient{}},
				{Order: 2, Background: protocol.Solid{Color: protocol.Hsla{A: 1}}},
			},
			Paths: []protocol.Path{{Order: 3, Color: protocol.LinearGradient{Stops: []protocol.LinearColorStop{{Percentage: 2}}}}},
		},
	}
	list, rep, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(list.Items) != 1 || len(rep.Skipped) != 2 {
		t.Fatalf("items=%d skipped=%+v", len(list.Items), rep.Skipped)
	}
	for _, s := range rep.Skipped {
		if !errors.Is(s.Err, protocol.ErrMalformedPrimitive) {
			t.Fatalf("skip reason=%v", s.Err)
		}
	}
}

func TestAbsentTransformIsIdentity(t *testing.T) {
	a := newAssembler()
	b := protocol.AtlasBounds{Width: 1, Height: 1}
	rot := protocol.TransformationMatrix{R01: -1, R10: 1}
	f := &protocol.FrameMessage{
		FrameID:      1,
		AtlasEntries: []protocol.AtlasEntry{glyphEntry(0, b)},
		Scene: protocol.SceneBody{MonochromeSprites: []protocol.MonochromeSprite{
			{Order: 1, Tile: protocol.AtlasTile{TextureID: glyphTex, Bounds: b}},
			{Order: 2, Tile: protocol.AtlasTile{TextureID: glyphTex, Bounds: b}, Transformation: rot},
		}},
	}
	list, _, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if m := list.Items[0].Primitive.(*protocol.MonochromeSprite).Transformation; m != protocol.Identity {
		t.Fatalf("transform=%+v", m)
	}
	if m := list.Items[1].Primitive.(*protocol.MonochromeSprite).Transformation; m != rot {
		t.Fatalf("explicit transform changed: %+v", m)
	}
}

func TestResetStartsNewSequence(t *testing.T) {
	a := newAssembler()
	b := protocol.AtlasBounds{Width: 1, Height: 1}
	if _, _, err := a.Assemble(&protocol.FrameMessage{FrameID: 10, AtlasEntries: []protocol.AtlasEntry{glyphEntry(1, b)}}); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	a.Reset()
	if _, ok := a.LastFrameID(); ok {
		t.Fatalf("last frame id survived reset")
	}
	f := &protocol.FrameMessage{
		FrameID: 1,
		Scene: protocol.SceneBody{MonochromeSprites: []protocol.MonochromeSprite{
			{Tile: protocol.AtlasTile{TextureID: glyphTex, TileID: 1, Bounds: b}},
		}},
	}
	list, rep, err := a.Assemble(f)
	if err != nil {
		t.Fatalf("frame after reset should be accepted: %v", err)
	}
	if len(list.Items) != 0 || len(rep.Skipped) != 1 {
		t.Fatalf("tile bound before reset must be unknown")
	}
}

func TestThemeHints(t *testing.T) {
	h := ThemeHintsFor(protocol.Hsla{L: 1, A: 1})
	if h.Appearance != "light" || h.BackgroundRGB != 0xffffff || h.BackgroundCSS != "#ffffff" {
		t.Fatalf("white hints=%+v", h)
	}
	h = ThemeHintsFor(protocol.Hsla{H: 0, S: 1, L: 0.5, A: 1})
	if h.Appearance != "dark" || h.BackgroundCSS != "#ff0000" {
		t.Fatalf("red hints=%+v", h)
	}

	quads := []protocol.Quad{
		{Bounds: protocol.Bounds{Size: protocol.Size{Width: 10, Height: 10}}, Background: protocol.Solid{Color: protocol.Hsla{L: 0.9}}},
		{Bounds: protocol.Bounds{Size: protocol.Size{Width: 800, Height: 600}}, Background: protocol.Solid{Color: protocol.Hsla{L: 0.2}}},
	}
	c, ok := WindowBackground(quads)
	if !ok || c.L != 0.2 {
		t.Fatalf("window background=%+v ok=%v", c, ok)
	}
	if _, ok := WindowBackground(nil); ok {
		t.Fatalf("no quads should yield no background")
	}
}
