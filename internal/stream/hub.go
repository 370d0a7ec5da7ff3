// Package stream pushes monitor tick and signal events to browser
// WebSocket clients.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub tracks connected clients and the latest envelope per channel so that
// new clients start from current state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[string]latestEntry
	seq     int64

	metrics *metrics.Metrics
	log     *slog.Logger
}

type latestEntry struct {
	inst string
	env  []byte
}

var _ model.EventPublisher = (*Hub)(nil)

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		latest:  make(map[string]latestEntry),
		metrics: m,
		log:     slog.Default().With("component", "stream"),
	}
}

// PublishTick broadcasts a tick on channel "tick:{instId}".
func (h *Hub) PublishTick(_ context.Context, ev model.TickEvent) error {
	h.broadcast("tick", ev.InstID, ev.JSON())
	return nil
}

// PublishSignal broadcasts a signal on channel "signal:{instId}".
func (h *Hub) PublishSignal(_ context.Context, ev model.SignalEvent) error {
	h.broadcast("signal", ev.InstID, ev.JSON())
	return nil
}

func (h *Hub) broadcast(kind, inst string, data []byte) {
	channel := kind + ":" + inst
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	env := envelope(kind, channel, data, now, h.seq, false)
	h.latest[channel] = latestEntry{inst: inst, env: envelope(kind, channel, data, now, h.seq, true)}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(inst) {
			continue
		}
		select {
		case c.send <- env:
		default:
			// slow client, drop
		}
	}
}

// envelope builds {"type":..,"channel":..,"data":..,"ts":..,"seq":N} by hand;
// data is already JSON.
func envelope(kind, channel string, data []byte, now time.Time, seq int64, initial bool) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, kind...)
	buf = append(buf, `","channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades the request to a WebSocket. The optional "inst" query
// parameter is a comma separated list of instrument ids to receive.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	c.setFilter(splitInsts(r.URL.Query().Get("inst")))

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	for _, e := range h.latest {
		if c.wants(e.inst) {
			select {
			case c.send <- e.env:
			default:
			}
		}
	}
	h.mu.Unlock()

	h.metrics.SetStreamClients(count)
	h.log.Info("ws client connected", "clients", count)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetStreamClients(count)
	h.log.Info("ws client disconnected", "clients", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func splitInsts(s string) []string {
	return normalizeInsts(strings.Split(s, ","))
}

func normalizeInsts(ids []string) []string {
	var out []string
	for _, part := range ids {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
