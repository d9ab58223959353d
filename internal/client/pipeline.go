// Package client receives scene frames from a streaming host, turns them into
// draw lists and sends local input back.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/persistence/indexdb"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
	"scenecast.dev/internal/scene"
)

// Recorder stores raw frame payloads for later replay.
type Recorder interface {
	WriteSession(label string) error
	WriteFrame(payload []byte) error
}

// Index receives per-session and per-frame outcomes.
type Index interface {
	RecordSession(indexdb.Session)
	EndSession(id string, at time.Time)
	RecordFrame(indexdb.Frame)
}

type PipelineConfig struct {
	Limits   wire.Limits
	Atlas    atlas.Config
	Recorder Recorder
	Index    Index
}

// PipelineStats counts frames since the pipeline was created.
type PipelineStats struct {
	Rendered     uint64
	Stale        uint64
	DecodeErrors uint64
	RenderErrors uint64
	Skipped      uint64
	LastFrameID  uint64
}

// Pipeline decodes, assembles and renders frames synchronously: a frame is
// fully rendered before the next one is decoded.
type Pipeline struct {
	log      zerolog.Logger
	limits   wire.Limits
	tracker  *atlas.Tracker
	asm      *scene.Assembler
	renderer scene.Renderer
	recorder Recorder
	index    Index

	mu        sync.Mutex
	sessionID string
	last      *scene.DrawList
	stats     PipelineStats
}

func NewPipeline(renderer scene.Renderer, cfg PipelineConfig, log zerolog.Logger) *Pipeline {
	if cfg.Limits.MaxMessageBytes <= 0 {
		cfg.Limits = wire.DefaultLimits()
	}
	tracker := atlas.NewTracker(cfg.Atlas)
	return &Pipeline{
		log:      log,
		limits:   cfg.Limits,
		tracker:  tracker,
		asm:      scene.NewAssembler(tracker, log),
		renderer: renderer,
		recorder: cfg.Recorder,
		index:    cfg.Index,
	}
}

// BeginSession resets all state and tags subsequent frames with id.
func (p *Pipeline) BeginSession(id, remote string) {
	p.Reset()
	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()
	if p.recorder != nil {
		if err := p.recorder.WriteSession(remote); err != nil {
			p.log.Warn().Err(err).Msg("record session")
		}
	}
	if p.index != nil {
		p.index.RecordSession(indexdb.Session{ID: id, Remote: remote, StartedAt: time.Now()})
	}
}

// EndSession marks the current session closed in the index.
func (p *Pipeline) EndSession() {
	p.mu.Lock()
	id := p.sessionID
	p.sessionID = ""
	p.mu.Unlock()
	if p.index != nil && id != "" {
		p.index.EndSession(id, time.Now())
	}
}

// Reset drops every atlas binding and the frame sequence. The last draw list
// is kept so a viewer can keep showing it while reconnecting.
func (p *Pipeline) Reset() {
	p.asm.Reset()
	observability.SetAtlasBytes(0)
}

// LastDrawList returns the most recently rendered draw list, or nil. Sprite
// regions in it are valid until the next call to HandleMessage.
func (p *Pipeline) LastDrawList() *scene.DrawList {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) AtlasStats() atlas.Stats { return p.tracker.Stats() }

// HandleMessage processes one transport message holding one or more
// length-delimited FrameMessages. Only framing failures are returned; they
// mean the connection must be dropped. Per-frame failures are logged and
// counted.
func (p *Pipeline) HandleMessage(ctx context.Context, payload []byte) error {
	msgs, err := wire.SplitDelimited(payload, p.limits)
	for _, m := range msgs {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		p.handleFrame(ctx, m)
	}
	if err != nil {
		observability.RecordError(protocol.CodeOf(err))
		return err
	}
	return nil
}

// HandleFrame processes one undelimited FrameMessage payload.
func (p *Pipeline) HandleFrame(ctx context.Context, payload []byte) {
	p.handleFrame(ctx, payload)
}

func (p *Pipeline) handleFrame(ctx context.Context, payload []byte) {
	start := time.Now()
	if p.recorder != nil {
		if err := p.recorder.WriteFrame(payload); err != nil {
			p.log.Warn().Err(err).Msg("record frame")
		}
	}
	row := indexdb.Frame{Bytes: len(payload), ReceivedAt: start}

	f, err := wire.UnmarshalFrame(payload)
	if err != nil {
		code := protocol.CodeOf(err)
		p.log.Warn().Str("code", code).Int("bytes", len(payload)).Err(err).Msg("frame decode failed")
		observability.RecordError(code)
		observability.RecordFrame(observability.OutcomeDecode, 0)
		p.bump(func(s *PipelineStats) { s.DecodeErrors++ })
		row.Outcome = indexdb.OutcomeDecodeError
		p.indexFrame(row)
		return
	}
	row.FrameID = f.FrameID

	list, rep, err := p.asm.Assemble(f)
	if err != nil {
		if errors.Is(err, protocol.ErrStaleFrame) {
			p.log.Debug().Uint64("frame_id", f.FrameID).Err(err).Msg("stale frame dropped")
			observability.RecordFrame(observability.OutcomeStale, 0)
			p.bump(func(s *PipelineStats) { s.Stale++ })
			row.Outcome = indexdb.OutcomeStale
			p.indexFrame(row)
			return
		}
		p.log.Error().Uint64("frame_id", f.FrameID).Err(err).Msg("assemble failed")
		observability.RecordError(protocol.CodeOf(err))
		return
	}
	for _, rj := range rep.Atlas.Rejected {
		observability.RecordError(protocol.CodeOf(rj.Err))
	}
	for _, sk := range rep.Skipped {
		observability.RecordSkip(sk.Kind.String(), protocol.CodeOf(sk.Err))
	}
	observability.SetAtlasBytes(p.tracker.Stats().Bytes)

	row.Outcome = indexdb.OutcomeAccepted
	row.Primitives = rep.Primitives
	row.Skipped = len(rep.Skipped)
	row.AtlasBytes = int64(rep.Atlas.Bytes)
	p.indexFrame(row)

	if p.renderer != nil {
		if err := p.renderer.Render(ctx, list); err != nil {
			p.log.Error().Uint64("frame_id", f.FrameID).Err(err).Msg("render failed")
			observability.RecordFrame(observability.OutcomeRender, 0)
			p.bump(func(s *PipelineStats) { s.RenderErrors++ })
			return
		}
	}
	observability.RecordFrame(observability.OutcomeRendered, time.Since(start))
	p.mu.Lock()
	p.last = list
	p.stats.Rendered++
	p.stats.Skipped += uint64(len(rep.Skipped))
	p.stats.LastFrameID = f.FrameID
	p.mu.Unlock()
}

func (p *Pipeline) bump(fn func(*PipelineStats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Pipeline) indexFrame(row indexdb.Frame) {
	if p.index == nil {
		return
	}
	p.mu.Lock()
	row.SessionID = p.sessionID
	p.mu.Unlock()
	if row.SessionID == "" {
		return
	}
	p.index.RecordFrame(row)
}

func (s PipelineStats) String() string {
	return fmt.Sprintf("rendered=%d stale=%d decode_errors=%d render_errors=%d skipped=%d last_frame=%d",
		s.Rendered, s.Stale, s.DecodeErrors, s.RenderErrors, s.Skipped, s.LastFrameID)
}
