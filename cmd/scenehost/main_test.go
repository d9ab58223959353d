package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
	"scenecast.dev/internal/scene"
	"scenecast.dev/internal/transport/ws"
)

func assemble(t *testing.T, asm *scene.Assembler, f *protocol.FrameMessage) (*scene.DrawList, scene.Report) {
	t.Helper()
	decoded, err := wire.UnmarshalFrame(wire.MarshalFrame(f))
	if err != nil {
		t.Fatalf("decode frame %d: %v", f.FrameID, err)
	}
	list, rep, err := asm.Assemble(decoded)
	if err != nil {
		t.Fatalf("assemble frame %d: %v", f.FrameID, err)
	}
	return list, rep
}

func TestDemo_FramesAssembleWithoutSkips(t *testing.T) {
	d := newDemo(protocol.Size{Width: 640, Height: 480}, 2)
	asm := scene.NewAssembler(atlas.NewTracker(atlas.DefaultConfig()), zerolog.Nop())

	first := d.next(1, 0)
	if len(first.AtlasEntries) != glyphCount+1 {
		t.Fatalf("first frame atlas entries=%d", len(first.AtlasEntries))
	}
	list, rep := assemble(t, asm, first)
	if rep.Atlas.Applied != glyphCount+1 || len(rep.Atlas.Rejected) != 0 {
		t.Fatalf("atlas report=%+v", rep.Atlas)
	}
	if len(rep.Skipped) != 0 {
		t.Fatalf("skipped=%+v", rep.Skipped)
	}
	if list.Viewport != (protocol.Size{Width: 640, Height: 480}) || list.ScaleFactor != 2 {
		t.Fatalf("viewport=%+v scale=%v", list.Viewport, list.ScaleFactor)
	}
	counts := list.Counts()
	if counts[protocol.PrimMonochromeSprite] != 8 || counts[protocol.PrimPolychromeSprite] != 1 ||
		counts[protocol.PrimPath] != 1 || counts[protocol.PrimShadow] != 1 || counts[protocol.PrimUnderline] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	for i := 1; i < len(list.Items); i++ {
		if list.Items[i-1].Primitive.DrawOrder() > list.Items[i].Primitive.DrawOrder() {
			t.Fatalf("items out of paint order at %d", i)
		}
	}

	d.published()
	second := d.next(2, time.Second)
	if len(second.AtlasEntries) != 0 {
		t.Fatalf("atlas resent after upload: %d", len(second.AtlasEntries))
	}
	if _, rep := assemble(t, asm, second); len(rep.Skipped) != 0 {
		t.Fatalf("second frame skipped=%+v", rep.Skipped)
	}
}

func TestDemo_InputChangesScene(t *testing.T) {
	d := newDemo(protocol.Size{Width: 640, Height: 480}, 1)
	d.apply(protocol.Resize{Size: protocol.Size{Width: 800, Height: 600}, ScaleFactor: 2})
	d.apply(protocol.MouseDown{Position: protocol.Point{X: 100, Y: 50}, ClickCount: 3})

	f := d.frame(1)
	if f.ViewportWidth != 800 || f.ScaleFactor != 2 {
		t.Fatalf("viewport=%vx%v scale=%v", f.ViewportWidth, f.ViewportHeight, f.ScaleFactor)
	}
	if bg := f.Scene.Quads[0].Bounds.Size; bg.Width != 1600 || bg.Height != 1200 {
		t.Fatalf("background bounds=%+v", bg)
	}
	var cursor *protocol.Quad
	dots := 0
	for i := range f.Scene.Quads {
		q := &f.Scene.Quads[i]
		if q.Order != 10 {
			continue
		}
		if cursor == nil {
			cursor = q
		} else {
			dots++
		}
	}
	if cursor == nil || !cursor.Bounds.Contains(protocol.Point{X: 100, Y: 50}) {
		t.Fatalf("cursor=%+v", cursor)
	}
	if _, ok := cursor.Background.(protocol.Checkerboard); !ok {
		t.Fatalf("pressed cursor background=%T", cursor.Background)
	}
	if dots != 3 {
		t.Fatalf("click dots=%d", dots)
	}
	if !f.Scene.Underlines[0].Wavy {
		t.Fatalf("underline should be wavy while pressed")
	}

	d.apply(protocol.KeyDown{Key: " "})
	d.advance(time.Second)
	if d.elapsed != 0 {
		t.Fatalf("paused demo advanced to %v", d.elapsed)
	}
}

func TestFixtureSource_RenumbersAcrossCycles(t *testing.T) {
	s := &fixtureSource{frames: []protocol.FrameMessage{{FrameID: 7}, {FrameID: 8}}}
	var ids []uint64
	for id := uint64(1); id <= 5; id++ {
		ids = append(ids, s.next(id, 0).FrameID)
	}
	for i, id := range ids {
		if id != uint64(i+1) {
			t.Fatalf("ids=%v", ids)
		}
	}
	if s.frames[0].FrameID != 7 {
		t.Fatalf("source frames modified: %d", s.frames[0].FrameID)
	}
}

func TestLoop_PublishesUntilHubCloses(t *testing.T) {
	hub := ws.NewHub(ws.DefaultConfig(), zerolog.Nop())
	lp := &loop{
		hub:      hub,
		src:      newDemo(protocol.Size{Width: 320, Height: 240}, 1),
		log:      zerolog.Nop(),
		interval: 5 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		lp.run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for lp.frameID() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop published %d frames", lp.frameID())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.MirrorSize(); n != glyphCount+1 {
		t.Fatalf("mirror=%d", n)
	}
	hub.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop after hub close")
	}
}

func TestRouter_Healthz(t *testing.T) {
	hub := ws.NewHub(ws.DefaultConfig(), zerolog.Nop())
	defer hub.Close()
	lp := &loop{hub: hub}
	lp.id.Store(42)
	srv := httptest.NewServer(newRouter("/scene", hub, lp, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		OK      bool   `json:"ok"`
		Clients int    `json:"clients"`
		FrameID uint64 `json:"frame_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.FrameID != 42 || body.Clients != 0 {
		t.Fatalf("healthz=%+v", body)
	}

	mresp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer mresp.Body.Close()
	if mresp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", mresp.StatusCode)
	}

	sresp, err := http.Get(srv.URL + "/scene")
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	defer sresp.Body.Close()
	if sresp.StatusCode != http.StatusBadRequest || !strings.Contains(sresp.Header.Get("Sec-Websocket-Version"), "13") {
		t.Fatalf("plain GET on scene path: status=%d", sresp.StatusCode)
	}
}
