package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/transport/ws"
)

const statsEvery = 30 * time.Second

// loop publishes one frame per interval and applies viewer input between
// frames. The source is only touched from run's goroutine.
type loop struct {
	hub      *ws.Hub
	src      source
	log      zerolog.Logger
	interval time.Duration

	id     atomic.Uint64
	failed uint64
}

func (l *loop) frameID() uint64 { return l.id.Load() }

func (l *loop) run(ctx context.Context) {
	tick := time.NewTicker(l.interval)
	defer tick.Stop()
	stats := time.NewTicker(statsEvery)
	defer stats.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-l.hub.Inputs():
			if in.Message.Event == nil {
				continue
			}
			l.log.Debug().Str("session", in.Session).Str("kind", in.Message.Kind()).Msg("input")
			l.src.apply(in.Message.Event)
		case now := <-tick.C:
			if !l.publish(now.Sub(last)) {
				return
			}
			last = now
		case <-stats.C:
			l.log.Info().
				Int("viewers", l.hub.ClientCount()).
				Int("atlas_entries", l.hub.MirrorSize()).
				Str("frames", humanize.Comma(int64(l.frameID()))).
				Uint64("failed", l.failed).
				Msg("host stats")
		}
	}
}

// publish reports false once the hub is closed.
func (l *loop) publish(dt time.Duration) bool {
	id := l.id.Add(1)
	f := l.src.next(id, dt)
	if err := l.hub.Publish(f); err != nil {
		if errors.Is(err, ws.ErrHubClosed) {
			return false
		}
		l.failed++
		l.log.Warn().Err(err).Uint64("frame_id", id).Msg("publish failed")
		return true
	}
	l.src.published()
	return true
}
