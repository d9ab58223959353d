// Package ws serves a scene stream to WebSocket viewers and collects their
// input.
package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/wire"
)

var ErrHubClosed = errors.New("ws: hub closed")

type Config struct {
	ClientQueue     int
	MaxClients      int
	MaxMessageBytes int
	InputRate       float64
	InputBurst      int
	InputBuffer     int
}

func DefaultConfig() Config {
	return Config{
		ClientQueue:     64,
		MaxClients:      32,
		MaxMessageBytes: 16 << 20,
		InputRate:       240,
		InputBurst:      64,
		InputBuffer:     1024,
	}
}

// Input is one decoded InputMessage and the session it came from.
type Input struct {
	Session string
	Message protocol.InputMessage
	At      time.Time
}

type client struct {
	id      string
	out     chan []byte
	limiter *rate.Limiter
	// resync is set until the client has received the full atlas mirror.
	resync bool

	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) kick() { c.closeOnce.Do(func() { close(c.done) }) }

// Hub fans published frames out to every connected viewer. Each viewer keeps
// its own atlas, so a viewer that cannot keep up is disconnected rather than
// skipped; it resynchronizes from the atlas mirror when it reconnects.
type Hub struct {
	cfg      Config
	log      zerolog.Logger
	limits   wire.Limits
	upgrader websocket.Upgrader

	inputs chan Input

	mu      sync.Mutex
	clients map[string]*client
	mirror  []protocol.AtlasEntry
	closed  bool
}

func NewHub(cfg Config, logger zerolog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.ClientQueue <= 0 {
		cfg.ClientQueue = def.ClientQueue
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.InputRate <= 0 {
		cfg.InputRate = def.InputRate
	}
	if cfg.InputBurst <= 0 {
		cfg.InputBurst = def.InputBurst
	}
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = def.InputBuffer
	}
	return &Hub{
		cfg:    cfg,
		log:    logger,
		limits: wire.Limits{MaxMessageBytes: cfg.MaxMessageBytes},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		inputs:  make(chan Input, cfg.InputBuffer),
		clients: make(map[string]*client),
	}
}

// Inputs delivers viewer input in arrival order per session. Input that
// arrives while the channel is full is dropped.
func (h *Hub) Inputs() <-chan Input { return h.inputs }

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// MirrorSize is the number of atlas entries a new viewer would receive.
func (h *Hub) MirrorSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mirror)
}

// Publish sends f to every viewer. Viewers that joined since the previous
// publish receive every live atlas entry with it.
func (h *Hub) Publish(f *protocol.FrameMessage) error {
	payload := wire.MarshalFrame(f)
	if len(payload) > h.cfg.MaxMessageBytes {
		return fmt.Errorf("%w: frame %d is %d bytes", wire.ErrFrameTooLarge, f.FrameID, len(payload))
	}
	framed := wire.AppendDelimited(make([]byte, 0, len(payload)+wire.MaxPrefixLen), payload)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.updateMirrorLocked(f.AtlasEntries)

	var resync []byte
	for id, c := range h.clients {
		b := framed
		if c.resync {
			if resync == nil {
				full := *f
				full.AtlasEntries = h.mirrorEntriesLocked()
				resync = wire.AppendDelimited(nil, wire.MarshalFrame(&full))
			}
			b = resync
		}
		select {
		case c.out <- b:
			c.resync = false
			observability.RecordHostFrame(len(b))
		default:
			h.log.Warn().Str("session", id).Uint64("frame_id", f.FrameID).Msg("viewer queue full, disconnecting")
			observability.RecordHostDisconnect("slow")
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) updateMirrorLocked(entries []protocol.AtlasEntry) {
	for _, e := range entries {
		kept := h.mirror[:0]
		for _, m := range h.mirror {
			if m.TextureID == e.TextureID && overlaps(m.Bounds, e.Bounds) {
				continue
			}
			if e.TileID != 0 && m.TileID == e.TileID && m.TextureID == e.TextureID {
				continue
			}
			kept = append(kept, m)
		}
		e.PixelData = append([]byte(nil), e.PixelData...)
		h.mirror = append(kept, e)
	}
}

func (h *Hub) mirrorEntriesLocked() []protocol.AtlasEntry {
	return append([]protocol.AtlasEntry(nil), h.mirror...)
}

func overlaps(a, b protocol.AtlasBounds) bool {
	return int64(a.OriginX) < int64(b.OriginX)+int64(b.Width) && int64(b.OriginX) < int64(a.OriginX)+int64(a.Width) &&
		int64(a.OriginY) < int64(b.OriginY)+int64(b.Height) && int64(b.OriginY) < int64(a.OriginY)+int64(a.Height)
}

// Close disconnects every viewer. Publish fails afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.clients) >= h.cfg.MaxClients {
		return false
	}
	h.clients[c.id] = c
	observability.SetHostClients(len(h.clients))
	return true
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	c.kick()
	observability.SetHostClients(len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if h.ClientCount() >= h.cfg.MaxClients {
			http.Error(rw, "too many viewers", http.StatusServiceUnavailable)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(int64(h.cfg.MaxMessageBytes + wire.MaxPrefixLen))

		c := &client{
			id:      uuid.NewString(),
			out:     make(chan []byte, h.cfg.ClientQueue),
			limiter: rate.NewLimiter(rate.Limit(h.cfg.InputRate), h.cfg.InputBurst),
			resync:  true,
			done:    make(chan struct{}),
		}
		if !h.register(c) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many viewers"),
				time.Now().Add(time.Second))
			return
		}
		log := h.log.With().Str("session", c.id).Str("remote", r.RemoteAddr).Logger()
		log.Info().Msg("viewer connected")
		defer func() {
			h.remove(c)
			log.Info().Msg("viewer disconnected")
		}()

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(20 * time.Second)
			defer ping.Stop()
			for {
				select {
				case <-c.done:
					_ = conn.Close()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						c.kick()
					}
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						c.kick()
					}
				}
			}
		}()

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})
		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				c.kick()
				return
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			if err := h.handleInput(c, msg, log); err != nil {
				log.Warn().Str("code", protocol.CodeOf(err)).Err(err).Msg("input framing error")
				observability.RecordHostDisconnect("framing")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseProtocolError, protocol.CodeOf(err)),
					time.Now().Add(time.Second))
				c.kick()
				return
			}
		}
	}
}

// handleInput returns only framing errors.
func (h *Hub) handleInput(c *client, msg []byte, log zerolog.Logger) error {
	parts, err := wire.SplitDelimited(msg, h.limits)
	for _, p := range parts {
		m, derr := wire.UnmarshalInput(p, wire.OnWarning(func(w error) {
			log.Warn().Str("code", protocol.CodeOf(w)).Err(w).Msg("input oneof carried several variants")
		}))
		if derr != nil {
			log.Warn().Str("code", protocol.CodeOf(derr)).Err(derr).Msg("input decode failed")
			observability.RecordHostInput("invalid", false)
			continue
		}
		kind := m.Kind()
		if !c.limiter.Allow() {
			observability.RecordHostInput(kind, false)
			continue
		}
		select {
		case h.inputs <- Input{Session: c.id, Message: m, At: time.Now()}:
			observability.RecordHostInput(kind, true)
		default:
			observability.RecordHostInput(kind, false)
		}
	}
	return err
}
