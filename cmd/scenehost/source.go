package main

import (
	"time"

	"scenecast.dev/internal/protocol"
)

// source produces the frames the host publishes.
type source interface {
	next(id uint64, dt time.Duration) *protocol.FrameMessage
	published()
	apply(protocol.Input)
}

func (d *demo) next(id uint64, dt time.Duration) *protocol.FrameMessage {
	d.advance(dt)
	return d.frame(id)
}

func (d *demo) published() { d.markUploaded() }

// fixtureSource cycles through fixture frames, renumbering them so frame ids
// keep increasing across cycles. Input is ignored.
type fixtureSource struct {
	frames []protocol.FrameMessage
	i      int
}

func (s *fixtureSource) next(id uint64, _ time.Duration) *protocol.FrameMessage {
	f := s.frames[s.i%len(s.frames)]
	s.i++
	f.FrameID = id
	return &f
}

func (s *fixtureSource) published() {}

func (s *fixtureSource) apply(protocol.Input) {}
