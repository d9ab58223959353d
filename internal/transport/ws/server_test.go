package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.FrameMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	parts, err := wire.SplitDelimited(data, wire.DefaultLimits())
	if err != nil || len(parts) != 1 {
		t.Fatalf("framing: parts=%d err=%v", len(parts), err)
	}
	f, err := wire.UnmarshalFrame(parts[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func glyph(x int32, tile uint32) protocol.AtlasEntry {
	tex := protocol.AtlasTextureID{Index: 0, Kind: protocol.KindMonochrome}
	return protocol.AtlasEntry{
		TextureID: tex,
		Bounds:    protocol.AtlasBounds{OriginX: x, Width: 2, Height: 2},
		Format:    protocol.KindMonochrome,
		PixelData: []byte{1, 2, 3, 4},
		TileID:    tile,
	}
}

func TestHub_NewViewerReceivesAtlasMirror(t *testing.T) {
	h := NewHub(DefaultConfig(), zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	if err := h.Publish(&protocol.FrameMessage{FrameID: 1, AtlasEntries: []protocol.AtlasEntry{glyph(0, 1), glyph(4, 2)}}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, "viewer registration", func() bool { return h.ClientCount() == 1 })

	if err := h.Publish(&protocol.FrameMessage{FrameID: 2, AtlasEntries: []protocol.AtlasEntry{glyph(8, 3)}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	f := readFrame(t, conn)
	if f.FrameID != 2 || len(f.AtlasEntries) != 3 {
		t.Fatalf("resync frame id=%d entries=%d", f.FrameID, len(f.AtlasEntries))
	}

	if err := h.Publish(&protocol.FrameMessage{FrameID: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if f := readFrame(t, conn); f.FrameID != 3 || len(f.AtlasEntries) != 0 {
		t.Fatalf("steady frame id=%d entries=%d", f.FrameID, len(f.AtlasEntries))
	}
}

func TestHub_MirrorEvictsOverlappingAndRetaggedEntries(t *testing.T) {
	h := NewHub(DefaultConfig(), zerolog.Nop())
	entries := []protocol.AtlasEntry{glyph(0, 1), glyph(1, 0), glyph(10, 2)}
	if err := h.Publish(&protocol.FrameMessage{FrameID: 1, AtlasEntries: entries}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// glyph(1) overlaps glyph(0); glyph(10) is separate.
	if n := h.MirrorSize(); n != 2 {
		t.Fatalf("mirror=%d want 2", n)
	}
	// Same tile id, new location.
	if err := h.Publish(&protocol.FrameMessage{FrameID: 2, AtlasEntries: []protocol.AtlasEntry{glyph(20, 2)}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n := h.MirrorSize(); n != 2 {
		t.Fatalf("mirror=%d want 2", n)
	}

	entries[1].PixelData[0] = 99
	for _, e := range h.mirrorEntriesLocked() {
		if e.PixelData[0] == 99 {
			t.Fatalf("mirror aliases caller pixel data")
		}
	}
}

func TestHub_SlowViewerIsDisconnected(t *testing.T) {
	h := NewHub(Config{ClientQueue: 1}, zerolog.Nop())
	c := &client{id: "slow", out: make(chan []byte, 1), resync: true, done: make(chan struct{})}
	if !h.register(c) {
		t.Fatalf("register failed")
	}
	if err := h.Publish(&protocol.FrameMessage{FrameID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := h.Publish(&protocol.FrameMessage{FrameID: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Fatalf("slow viewer still registered")
	}
	select {
	case <-c.done:
	default:
		t.Fatalf("slow viewer not kicked")
	}
}

func TestHub_InputDecodedAndRateLimited(t *testing.T) {
	h := NewHub(Config{InputRate: 0.001, InputBurst: 2}, zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	defer conn.Close()

	// Two variants in one message: the later one wins.
	double := wire.MarshalInput(protocol.InputMessage{Event: protocol.KeyDown{Key: "a"}})
	double = append(double, wire.MarshalInput(protocol.InputMessage{Event: protocol.KeyUp{Key: "b"}})...)
	var batch []byte
	batch = wire.AppendDelimited(batch, double)
	for i := 0; i < 4; i++ {
		batch = wire.AppendDelimited(batch, wire.MarshalInput(protocol.InputMessage{
			Event: protocol.MouseMove{Position: protocol.Point{X: float32(i)}},
		}))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, batch); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []Input
	for len(got) < 2 {
		select {
		case in := <-h.Inputs():
			got = append(got, in)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %d inputs", len(got))
		}
	}
	if ku, ok := got[0].Message.Event.(protocol.KeyUp); !ok || ku.Key != "b" {
		t.Fatalf("first input=%#v", got[0].Message.Event)
	}
	if _, ok := got[1].Message.Event.(protocol.MouseMove); !ok {
		t.Fatalf("second input=%#v", got[1].Message.Event)
	}
	if got[0].Session == "" || got[0].Session != got[1].Session {
		t.Fatalf("sessions=%q %q", got[0].Session, got[1].Session)
	}
	select {
	case in := <-h.Inputs():
		t.Fatalf("rate limit exceeded, got %#v", in)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FramingErrorClosesViewer(t *testing.T) {
	h := NewHub(DefaultConfig(), zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, "viewer registration", func() bool { return h.ClientCount() == 1 })
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x09, 0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseProtocolError {
		t.Fatalf("expected protocol close, got %v", err)
	}
	waitFor(t, "viewer removal", func() bool { return h.ClientCount() == 0 })
}

func TestHub_RejectsBeyondMaxClients(t *testing.T) {
	h := NewHub(Config{MaxClients: 1}, zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	first := dial(t, srv)
	defer first.Close()
	waitFor(t, "viewer registration", func() bool { return h.ClientCount() == 1 })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("second viewer accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
}

func TestHub_PublishLimits(t *testing.T) {
	h := NewHub(Config{MaxMessageBytes: 8}, zerolog.Nop())
	big := &protocol.FrameMessage{FrameID: 1, AtlasEntries: []protocol.AtlasEntry{glyph(0, 1)}}
	if err := h.Publish(big); !errors.Is(err, wire.ErrFrameTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	h.Close()
	if err := h.Publish(&protocol.FrameMessage{FrameID: 2}); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}
