// Package stream broadcasts render events to browsers over Server-Sent
// Events. Clients connect via GET /api/v1/stream.
//
// SSE message format:
//
//	data: {"type":"iss","iss":{"latitude":50.11,...}}\n\n
//	data: {"type":"user","user":{"position":{...},"distance_km":1234.5,...}}\n\n
//
// The first message on every connection is a snapshot holding the latest
// records seen so far:
//
//	data: {"type":"snapshot","iss":{...},"user":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval when idle.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/star/isswatch/internal/httputil"
	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/metrics"
	"github.com/star/isswatch/internal/render"
)

// EventSnapshot is the type of the first message on a connection.
const EventSnapshot = "snapshot"

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	BufferSize         int           // Queued messages per client (default: 16).
	TrustProxy         bool          // Read client IP from X-Forwarded-For.
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 10
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 1000
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 16
	}
	return c
}

// Hub is a render.Renderer that fans events out to connected SSE clients.
type Hub struct {
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger

	lastISS  atomic.Pointer[iss.Position]
	lastUser atomic.Pointer[render.UserView]

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub creates a streaming hub.
func NewHub(config Config, logger *slog.Logger) *Hub {
	config = config.withDefaults()
	return &Hub{
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger.With("component", "stream"),
		subs:    make(map[chan []byte]struct{}),
	}
}

func (h *Hub) RenderSatellite(ctx context.Context, pos iss.Position) error {
	h.lastISS.Store(&pos)
	return h.broadcast(render.Event{Type: render.EventISS, ISS: &pos})
}

func (h *Hub) RenderUser(ctx context.Context, view render.UserView) error {
	h.lastUser.Store(&view)
	return h.broadcast(render.Event{Type: render.EventUser, User: &view})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(ev render.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			// Slow client; it picks up the next event.
			metrics.IncStreamErrors("dropped")
		}
	}
	return nil
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, h.config.BufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *Hub) snapshot() render.Event {
	return render.Event{
		Type: EventSnapshot,
		ISS:  h.lastISS.Load(),
		User: h.lastUser.Load(),
	}
}

// HandleStream serves the SSE render stream.
// GET /api/v1/stream
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	// Rate limiting: enforce concurrent stream limits.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.limiter.release(ip)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Subscribe before the snapshot so no event falls between the two.
	ch := h.subscribe()

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	startTime := time.Now()
	clientID := uuid.NewString()
	h.logger.Info("stream connected",
		"client_id", clientID,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		h.unsubscribe(ch)
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"client_id", clientID,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server WriteTimeout would otherwise cut long-lived streams.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		id:      clientID,
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.snapshot()); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (snapshot)", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case data := <-ch:
			if err := c.sendRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
