// Package stream pushes ingestion events to browsers over WebSocket.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"riego-dashboard/internal/ingest"
	"riego-dashboard/internal/telemetry"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// DefaultClientBuffer is how many events a client may fall behind before
	// it is disconnected.
	DefaultClientBuffer = 64
)

// Event types sent on the stream.
const (
	EventSample      = "sample"
	EventGauge       = "gauge"
	EventRain        = "rain"
	EventLog         = "log"
	EventState       = "state"
	EventReading     = "reading"
	EventDecodeError = "decode_error"
)

type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time,omitzero"`
	Data any       `json:"data"`
}

type GaugeEvent struct {
	Kind telemetry.GaugeKind `json:"kind"`
	telemetry.GaugeValue
}

type LogEvent struct {
	Raw   string `json:"raw"`
	Error string `json:"error,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans ingestion events out to every connected client. Observer calls
// never block: a client whose buffer is full is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	buffer   int

	mu        sync.Mutex
	clients   map[*client]struct{}
	lastState telemetry.ConnectionState
	stateSent bool
	closed    bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		buffer:  DefaultClientBuffer,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.stateSent {
		if msg, err := encode(Event{Type: EventState, Data: h.lastState}); err == nil {
			c.send <- msg
		}
	}
	h.mu.Unlock()

	h.logger.Debug("stream client connected", "client", c.id, "remote", r.RemoteAddr)
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Debug("stream client disconnected", "client", c.id)
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// remove unregisters c and closes its send channel; it is safe to call more
// than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) broadcast(ev Event) {
	msg, err := encode(ev)
	if err != nil {
		h.logger.Error("encode stream event", "type", ev.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("stream client too slow, disconnecting", "client", c.id)
			h.removeLocked(c)
		}
	}
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func (h *Hub) OnSampleAppended(s telemetry.Sample) {
	h.broadcast(Event{Type: EventSample, Time: s.Time, Data: s})
}

func (h *Hub) OnGauge(kind telemetry.GaugeKind, v telemetry.GaugeValue) {
	h.broadcast(Event{Type: EventGauge, Data: GaugeEvent{Kind: kind, GaugeValue: v}})
}

func (h *Hub) OnRainFlag(raining bool) {
	h.broadcast(Event{Type: EventRain, Data: raining})
}

func (h *Hub) OnLogLine(at time.Time, raw string) {
	h.broadcast(Event{Type: EventLog, Time: at, Data: LogEvent{Raw: raw}})
}

// OnConnectionState only forwards changes; the loop reports the state every
// cycle.
func (h *Hub) OnConnectionState(state telemetry.ConnectionState) {
	h.mu.Lock()
	changed := !h.stateSent || h.lastState != state
	h.lastState = state
	h.stateSent = true
	h.mu.Unlock()
	if changed {
		h.broadcast(Event{Type: EventState, Data: state})
	}
}

func (h *Hub) OnReading(at time.Time, r telemetry.Reading) {
	h.broadcast(Event{Type: EventReading, Time: at, Data: r})
}

func (h *Hub) OnDecodeError(at time.Time, raw string, err error) {
	h.broadcast(Event{Type: EventDecodeError, Time: at, Data: LogEvent{Raw: raw, Error: err.Error()}})
}

func (h *Hub) OnCycle(ingest.CycleResult, time.Duration) {}

var _ ingest.Observer = (*Hub)(nil)
