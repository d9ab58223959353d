package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/scene"
)

// statsRenderer stands in for a GPU renderer: it tallies draw lists and logs
// a summary at most once per interval.
type statsRenderer struct {
	log   zerolog.Logger
	every time.Duration
	now   func() time.Time

	mu        sync.Mutex
	frames    uint64
	items     uint64
	pixels    uint64
	lastLog   time.Time
	sinceLog  uint64
	lastFrame uint64
}

func newStatsRenderer(log zerolog.Logger, every time.Duration) *statsRenderer {
	return &statsRenderer{log: log, every: every, now: time.Now}
}

func (r *statsRenderer) Render(_ context.Context, list *scene.DrawList) error {
	var px uint64
	for _, it := range list.Items {
		if it.Region != nil && !it.Region.Empty() {
			px += uint64(it.Region.Width * it.Region.Height * it.Region.BytesPerPixel())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.sinceLog++
	r.items += uint64(len(list.Items))
	r.pixels += px
	r.lastFrame = list.FrameID

	now := r.now()
	if r.every <= 0 || now.Sub(r.lastLog) < r.every {
		return nil
	}
	elapsed := now.Sub(r.lastLog)
	fps := 0.0
	if !r.lastLog.IsZero() && elapsed > 0 {
		fps = float64(r.sinceLog) / elapsed.Seconds()
	}
	r.log.Info().
		Uint64("frame_id", list.FrameID).
		Int("items", len(list.Items)).
		Str("counts", formatCounts(list.Counts())).
		Str("sprite_pixels", humanize.Bytes(px)).
		Float64("fps", fps).
		Msg("rendered")
	r.lastLog = now
	r.sinceLog = 0
	return nil
}

// summary writes totals and the per-kind makeup of list.
func (r *statsRenderer) summary(w io.Writer, list *scene.DrawList) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(w, "frames=%s items=%s sprite_pixels=%s last_frame=%d\n",
		humanize.Comma(int64(r.frames)), humanize.Comma(int64(r.items)), humanize.Bytes(r.pixels), r.lastFrame)
	if list == nil {
		return
	}
	fmt.Fprintf(w, "last list: frame=%d viewport=%gx%g@%g background=%s %s\n",
		list.FrameID, list.Viewport.Width, list.Viewport.Height, list.ScaleFactor,
		hex(list.Background), formatCounts(list.Counts()))
}

func formatCounts(counts map[protocol.PrimitiveKind]int) string {
	kinds := make([]protocol.PrimitiveKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func hex(c protocol.Hsla) string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
