package input

import (
	"fmt"
	"math"
	"sync"
	"time"

	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
)

// Sender delivers one length-delimited InputMessage to the transport. Sends
// must preserve call order.
type Sender interface {
	Send(msg []byte) error
}

type Config struct {
	MultiClickInterval time.Duration
	// MultiClickRadius is in logical pixels and scaled by the device factor.
	MultiClickRadius float32
	LineHeight       float32
	PageHeight       float32
}

func DefaultConfig() Config {
	return Config{
		MultiClickInterval: 500 * time.Millisecond,
		MultiClickRadius:   4,
		LineHeight:         20,
		PageHeight:         800,
	}
}

// Dispatcher converts host events into InputMessages and sends them.
type Dispatcher struct {
	sender Sender
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	scale     float32
	lastClick time.Time
	lastPos   protocol.Point
	clicks    uint32
}

func NewDispatcher(sender Sender, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.MultiClickInterval <= 0 {
		cfg.MultiClickInterval = def.MultiClickInterval
	}
	if cfg.MultiClickRadius <= 0 {
		cfg.MultiClickRadius = def.MultiClickRadius
	}
	if cfg.LineHeight <= 0 {
		cfg.LineHeight = def.LineHeight
	}
	if cfg.PageHeight <= 0 {
		cfg.PageHeight = def.PageHeight
	}
	return &Dispatcher{sender: sender, cfg: cfg, now: time.Now, scale: 1}
}

// ScaleFactor returns the device scale applied to outgoing positions.
func (d *Dispatcher) ScaleFactor() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scale
}

// SetScaleFactor sets the device scale without emitting a Resize.
func (d *Dispatcher) SetScaleFactor(f float32) {
	if f <= 0 {
		return
	}
	d.mu.Lock()
	d.scale = f
	d.mu.Unlock()
}

// Dispatch translates ev and sends it. Modifier state is forwarded as given.
func (d *Dispatcher) Dispatch(ev HostEvent) error {
	in, err := d.translate(ev)
	if err != nil {
		return err
	}
	return d.Send(in)
}

// Send encodes one input variant and hands it to the sender.
func (d *Dispatcher) Send(in protocol.Input) error {
	msg := wire.MarshalInput(protocol.InputMessage{Event: in})
	if err := d.sender.Send(wire.AppendDelimited(nil, msg)); err != nil {
		return fmt.Errorf("send %s: %w", in.InputKind(), err)
	}
	observability.RecordInputSent(in.InputKind())
	return nil
}

func (d *Dispatcher) translate(ev HostEvent) (protocol.Input, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e := ev.(type) {
	case PointerMoved:
		return protocol.MouseMove{Position: d.point(e.X, e.Y), Modifiers: e.Modifiers}, nil
	case ButtonPressed:
		pos := d.point(e.X, e.Y)
		at := e.At
		if at.IsZero() {
			at = d.now()
		}
		return protocol.MouseDown{
			Button:     e.Button,
			Position:   pos,
			ClickCount: d.countClick(pos, at),
			Modifiers:  e.Modifiers,
		}, nil
	case ButtonReleased:
		return protocol.MouseUp{Button: e.Button, Position: d.point(e.X, e.Y), Modifiers: e.Modifiers}, nil
	case WheelScrolled:
		mult := float32(1)
		switch e.Mode {
		case DeltaLine:
			mult = d.cfg.LineHeight
		case DeltaPage:
			mult = d.cfg.PageHeight
		}
		return protocol.Scroll{
			Position:  d.point(e.X, e.Y),
			Delta:     protocol.Point{X: e.DX * mult, Y: e.DY * mult},
			Modifiers: e.Modifiers,
		}, nil
	case KeyPressed:
		return protocol.KeyDown{Key: e.Key, Modifiers: e.Modifiers}, nil
	case KeyReleased:
		return protocol.KeyUp{Key: e.Key, Modifiers: e.Modifiers}, nil
	case ViewportResized:
		if e.ScaleFactor > 0 {
			d.scale = e.ScaleFactor
		}
		return protocol.Resize{
			Size:        protocol.Size{Width: e.Width, Height: e.Height},
			ScaleFactor: e.ScaleFactor,
		}, nil
	}
	return nil, fmt.Errorf("input: unsupported host event %T", ev)
}

func (d *Dispatcher) point(x, y float32) protocol.Point {
	return protocol.Point{X: x * d.scale, Y: y * d.scale}
}

// countClick resets the run when the press is too late or too far from the
// previous one.
func (d *Dispatcher) countClick(pos protocol.Point, at time.Time) uint32 {
	dx := float64(pos.X - d.lastPos.X)
	dy := float64(pos.Y - d.lastPos.Y)
	dist := math.Sqrt(dx*dx + dy*dy)
	if at.Sub(d.lastClick) > d.cfg.MultiClickInterval || dist > float64(d.cfg.MultiClickRadius*d.scale) {
		d.clicks = 0
	}
	d.clicks++
	d.lastClick = at
	d.lastPos = pos
	return d.clicks
}
