// Package monitor broadcasts peer/election/heartbeat events over a
// websocket, for live observation and for test harnesses that want an
// ordered event feed instead of polling internal state. Adapted from
// the daemon's generic monitoring hub, repurposed from system alerts
// to the election/heartbeat/peer event types this module emits.
package monitor

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event kinds published by internal/election and internal/peernode
// (peernode publishes EventHeartbeat for every accepted heartbeat).
const (
	EventElectionStarted = "election_started"
	EventVoteGranted     = "vote_granted"
	EventQuorumWon       = "quorum_won"
	EventQuorumLost      = "quorum_lost"
	EventBecameTracker   = "became_tracker"
	EventHeartbeat       = "heartbeat"
	EventFileRegistered  = "file_registered"
)

// Event is one message broadcast to every connected monitor client.
type Event struct {
	Type   string    `json:"type"`
	PeerID uint64    `json:"peer_id"`
	Epoch  uint64    `json:"epoch"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Hub fans out Events to every connected websocket client.
type Hub struct {
	log *slog.Logger

	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// NewHub returns a Hub; call Run in its own goroutine to start it.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run is the hub's event loop; call it with `go`. It exits when done
// is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.log.Debug("monitor client connected", "total", len(h.clients))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.log.Debug("monitor client disconnected", "total", len(h.clients))

		case event := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					h.log.Debug("monitor write failed", "error", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a new client connection.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// Publish broadcasts an event to all connected clients. Non-blocking:
// if the channel is full the event is dropped and logged, matching the
// teacher's "never let a slow consumer stall the producer" policy.
func (h *Hub) Publish(kind string, peerID, epoch uint64, data any) {
	event := Event{Type: kind, PeerID: peerID, Epoch: epoch, Data: data, At: time.Now()}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("monitor broadcast channel full, event dropped", "kind", kind)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket and registers it with
// the hub until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("monitor upgrade failed", "error", err)
		return
	}
	h.Register(conn)
	go func() {
		defer h.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
