package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/config"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/scene"
)

func TestRenderFixture_RepoFixture(t *testing.T) {
	var out bytes.Buffer
	r := newStatsRenderer(zerolog.Nop(), 0)
	code := renderFixture("../../fixtures/hello.json", config.Defaults().Viewer, r, zerolog.Nop(), &out)
	if code != 0 {
		t.Fatalf("exit code=%d output=%s", code, out.String())
	}
	s := out.String()
	if !strings.Contains(s, "rendered=2") || !strings.Contains(s, "last list: frame=2") {
		t.Fatalf("output=%s", s)
	}
	if r.frames != 2 {
		t.Fatalf("renderer frames=%d", r.frames)
	}
}

func TestRenderFixture_InvalidFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"version": "1", "frames": [{"frame_id": "x"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out bytes.Buffer
	if code := renderFixture(path, config.Defaults().Viewer, newStatsRenderer(zerolog.Nop(), 0), zerolog.Nop(), &out); code != 1 {
		t.Fatalf("exit code=%d", code)
	}
}

func TestStatsRenderer_ThrottlesLogLines(t *testing.T) {
	var logs bytes.Buffer
	r := newStatsRenderer(zerolog.New(&logs), time.Second)
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	list := &scene.DrawList{FrameID: 1, Items: []scene.DrawItem{{Primitive: &protocol.Quad{}}}}
	for i := 0; i < 3; i++ {
		if err := r.Render(context.Background(), list); err != nil {
			t.Fatalf("render: %v", err)
		}
		now = now.Add(100 * time.Millisecond)
	}
	now = now.Add(time.Second)
	_ = r.Render(context.Background(), list)

	if n := strings.Count(logs.String(), `"message":"rendered"`); n != 2 {
		t.Fatalf("log lines=%d\n%s", n, logs.String())
	}
	if r.frames != 4 || r.items != 4 {
		t.Fatalf("frames=%d items=%d", r.frames, r.items)
	}
	if got := formatCounts(list.Counts()); got != "quad=1" {
		t.Fatalf("counts=%q", got)
	}
}
