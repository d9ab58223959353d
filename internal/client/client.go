package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/input"
	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
)

var (
	ErrNotConnected   = errors.New("client: not connected")
	ErrInputQueueFull = errors.New("client: input queue full")
)

type Config struct {
	URL            string
	ReconnectDelay time.Duration
	InputQueue     int
	Limits         wire.Limits
	Input          input.Config
	Viewport       protocol.Size
	ScaleFactor    float32
}

// Client keeps a WebSocket session to a streaming host open, feeding received
// frames to a Pipeline and sending queued input in order.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	pipeline *Pipeline
	dialer   *websocket.Dialer
	disp     *input.Dispatcher

	out       chan []byte
	connected atomic.Bool

	mu       sync.Mutex
	viewport protocol.Resize
}

func New(cfg Config, pipeline *Pipeline, log zerolog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.InputQueue <= 0 {
		cfg.InputQueue = 256
	}
	if cfg.Limits.MaxMessageBytes <= 0 {
		cfg.Limits = wire.DefaultLimits()
	}
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = 1
	}
	c := &Client{
		cfg:      cfg,
		log:      log,
		pipeline: pipeline,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  16 * 1024,
		},
		out:      make(chan []byte, cfg.InputQueue),
		viewport: protocol.Resize{Size: cfg.Viewport, ScaleFactor: cfg.ScaleFactor},
	}
	c.disp = input.NewDispatcher(c, cfg.Input)
	c.disp.SetScaleFactor(cfg.ScaleFactor)
	return c
}

func (c *Client) Connected() bool { return c.connected.Load() }

// Send implements input.Sender. Messages are queued only while connected and
// are never reordered.
func (c *Client) Send(msg []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	select {
	case c.out <- msg:
		return nil
	default:
		return ErrInputQueueFull
	}
}

// Dispatch translates and sends a local event. Viewport changes made while
// disconnected are remembered and sent on the next connect.
func (c *Client) Dispatch(ev input.HostEvent) error {
	if r, ok := ev.(input.ViewportResized); ok {
		c.mu.Lock()
		c.viewport = protocol.Resize{Size: protocol.Size{Width: r.Width, Height: r.Height}, ScaleFactor: r.ScaleFactor}
		c.mu.Unlock()
	}
	err := c.disp.Dispatch(ev)
	if errors.Is(err, ErrNotConnected) {
		if _, ok := ev.(input.ViewportResized); ok {
			return nil
		}
	}
	return err
}

// Run connects and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Str("url", c.cfg.URL).Dur("retry_in", c.cfg.ReconnectDelay).Msg("disconnected")
		observability.RecordReconnect()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(int64(c.cfg.Limits.MaxMessageBytes + wire.MaxPrefixLen))

	id := uuid.NewString()
	c.pipeline.BeginSession(id, c.cfg.URL)
	defer c.pipeline.EndSession()
	c.log.Info().Str("session", id).Str("url", c.cfg.URL).Msg("connected")

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.drainQueue()
	c.connected.Store(true)
	defer c.connected.Store(false)

	c.mu.Lock()
	resize := c.viewport
	c.mu.Unlock()
	if err := c.disp.Send(resize); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	// Writer goroutine.
	go func() {
		defer wg.Done()
		for {
			select {
			case <-sctx.Done():
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
					cancel()
					_ = conn.Close()
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		<-sctx.Done()
		_ = conn.Close()
	}()
	defer wg.Wait()
	defer cancel()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if sctx.Err() != nil {
				return sctx.Err()
			}
			return err
		}
		if typ != websocket.BinaryMessage {
			c.log.Warn().Int("type", typ).Msg("ignoring non-binary message")
			continue
		}
		if err := c.pipeline.HandleMessage(sctx, data); err != nil {
			if wire.IsFatal(err) {
				c.log.Error().Str("code", protocol.CodeOf(err)).Err(err).Msg("framing error, dropping connection")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseProtocolError, protocol.CodeOf(err)),
					time.Now().Add(time.Second))
			}
			return err
		}
	}
}

// drainQueue discards input queued during a previous session.
func (c *Client) drainQueue() {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}
