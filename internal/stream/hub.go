// Package stream broadcasts run events to WebSocket clients and accepts
// run commands from them.
package stream

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/litescript/starfield/internal/cluster"
	"github.com/litescript/starfield/internal/logging"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type       string       `json:"type"`
	Placed     int          `json:"placed,omitempty"`
	Total      int          `json:"total,omitempty"`
	Unit       int          `json:"unit"`
	Batch      int          `json:"batch,omitempty"`
	Row        *cluster.Row `json:"row,omitempty"`
	Terminated bool         `json:"terminated,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Message types.
const (
	TypeProgress     = "progress"
	TypeUnitProgress = "unit_progress"
	TypeUnitComplete = "unit_complete"
	TypeUnitFailed   = "unit_failed"
	TypeFinished     = "finished"
)

// Encode converts a generator event into a client frame.
func Encode(e cluster.Event) (Message, bool) {
	switch e := e.(type) {
	case cluster.ProgressEvent:
		return Message{Type: TypeProgress, Placed: e.Placed, Total: e.Total}, true
	case cluster.UnitProgressEvent:
		return Message{Type: TypeUnitProgress, Unit: e.Unit, Placed: e.Placed, Total: e.Total}, true
	case cluster.UnitCompleteEvent:
		row := e.Row
		return Message{Type: TypeUnitComplete, Unit: row.Unit, Placed: row.Count, Row: &row}, true
	case cluster.UnitFailedEvent:
		msg := Message{Type: TypeUnitFailed, Unit: e.Unit, Batch: e.Batch}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		return msg, true
	case cluster.FinishedEvent:
		msg := Message{Type: TypeFinished, Placed: e.Placed, Total: e.Total, Terminated: e.Terminated}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		return msg, true
	default:
		return Message{}, false
	}
}

// Controller is the part of a generator clients may drive.
type Controller interface {
	Terminate()
	Acknowledge()
}

// Command is the JSON frame clients send.
type Command struct {
	Command string `json:"command"` // "terminate" or "acknowledge"
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger
	control   Controller
	interval  time.Duration
	writeWait time.Duration

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	// Throttling of progress frames, guarded by clientsMu.
	lastProgress time.Time
	lastUnit     time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *logging.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithController lets clients terminate or acknowledge the run.
func WithController(c Controller) HubOption {
	return func(h *Hub) {
		h.control = c
	}
}

// WithProgressInterval sets the minimum gap between progress frames. Unit
// reports and the final frame are always sent.
func WithProgressInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		h.interval = d
	}
}

// WithWriteTimeout bounds each write to a client. A client that cannot
// take a frame in time is dropped.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.writeWait = d
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    logging.Discard(),
		interval:  50 * time.Millisecond,
		writeWait: 2 * time.Second,
		clients:   make(map[*websocket.Conn]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the client until it hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	h.clientsMu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.clientsMu.Unlock()
	defer h.remove(conn)

	h.logger.Info("client %s connected", r.RemoteAddr)

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("client %s read: %v", r.RemoteAddr, err)
			}
			return
		}
		h.handle(cmd)
	}
}

func (h *Hub) handle(cmd Command) {
	if h.control == nil {
		h.logger.Debug("ignoring %q: no controller", cmd.Command)
		return
	}
	switch strings.ToLower(cmd.Command) {
	case "terminate":
		h.logger.Info("terminate requested by client")
		h.control.Terminate()
	case "acknowledge", "ack":
		h.control.Acknowledge()
	default:
		h.logger.Debug("unknown command %q", cmd.Command)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Publish sends e to every client, dropping progress frames that arrive
// faster than the configured interval.
func (h *Hub) Publish(e cluster.Event) {
	msg, ok := Encode(e)
	if !ok || !h.due(msg.Type) {
		return
	}
	h.Broadcast(msg)
}

func (h *Hub) due(kind string) bool {
	if h.interval <= 0 {
		return true
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	now := time.Now()
	switch kind {
	case TypeProgress:
		if now.Sub(h.lastProgress) < h.interval {
			return false
		}
		h.lastProgress = now
	case TypeUnitProgress:
		if now.Sub(h.lastUnit) < h.interval {
			return false
		}
		h.lastUnit = now
	}
	return true
}

// Broadcast writes msg to every client. Clients that fail are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.clientsMu.RLock()
	var failed []*websocket.Conn
	for conn, mu := range h.clients {
		mu.Lock()
		err := conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err == nil {
			err = conn.WriteJSON(msg)
		}
		mu.Unlock()
		if err != nil {
			failed = append(failed, conn)
		}
	}
	h.clientsMu.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.clientsMu.Lock()
	for _, conn := range failed {
		delete(h.clients, conn)
		conn.Close()
	}
	h.clientsMu.Unlock()
	h.logger.Debug("dropped %d clients", len(failed))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for conn, mu := range h.clients {
		mu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
			time.Now().Add(h.writeWait))
		mu.Unlock()
		conn.Close()
		delete(h.clients, conn)
	}
}
