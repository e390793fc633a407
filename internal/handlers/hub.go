// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/broadcast"
)

// outbound is the wire envelope for every server-to-client event.
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsClient is a single live socket connection tracked by the hub.
type wsClient struct {
	sessionID string
	out       chan outbound
	cancel    context.CancelFunc
	logger    *logrus.Logger
}

// send pushes a message onto the client's out channel without blocking. A
// full or abandoned channel drops the message; broadcast delivery is
// best-effort and a slow client never stalls the room.
func (c *wsClient) send(msg outbound) {
	select {
	case c.out <- msg:
	default:
		c.logger.Warnf("Hub: out channel for session %s full, dropped %q", c.sessionID, msg.Type)
	}
}

func (c *wsClient) sendError(message string) {
	c.send(outbound{Type: string(broadcast.EventError), Data: map[string]any{"message": message}})
}

// Hub owns every live connection and the room membership used for fanout.
// It implements broadcast.Gateway for the engine and LiveSet for the orphan
// sweep.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*wsClient            // sessionID -> connection
	rooms   map[string]map[string]*wsClient // roomCode -> sessionID -> connection
	logger  *logrus.Logger
}

// NewHub initializes an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		clients: make(map[string]*wsClient),
		rooms:   make(map[string]map[string]*wsClient),
		logger:  logger,
	}
}

// Register tracks a freshly accepted connection.
func (h *Hub) Register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[c.sessionID]; ok && old != c {
		// Same session reconnected (refresh); drop the stale connection.
		old.cancel()
	}
	h.clients[c.sessionID] = c
}

// Unregister forgets a connection and removes it from every room.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, sessionID)
	for code, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
}

// JoinRoom subscribes a connection to a lobby's events.
func (h *Hub) JoinRoom(room string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*wsClient)
		h.rooms[room] = members
	}
	members[c.sessionID] = c
}

// LeaveRoom unsubscribes a connection from a lobby's events.
func (h *Hub) LeaveRoom(room, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// LiveSessions snapshots the identifiers of all live connections.
func (h *Hub) LiveSessions() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	live := make(map[string]bool, len(h.clients))
	for sid := range h.clients {
		live[sid] = true
	}
	return live
}

// Emit fans an event out to every connection in a room. Implements
// broadcast.Gateway; fire-and-forget by construction.
func (h *Hub) Emit(event broadcast.Event, payload any, room string) {
	h.mu.Lock()
	members := make([]*wsClient, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		c.send(outbound{Type: string(event), Data: payload})
	}
}

// EmitExcept behaves like Emit but skips one session, for events the acting
// client acknowledges separately (e.g. player_joined).
func (h *Hub) EmitExcept(event broadcast.Event, payload any, room, exceptSessionID string) {
	h.mu.Lock()
	members := make([]*wsClient, 0, len(h.rooms[room]))
	for sid, c := range h.rooms[room] {
		if sid != exceptSessionID {
			members = append(members, c)
		}
	}
	h.mu.Unlock()

	for _, c := range members {
		c.send(outbound{Type: string(event), Data: payload})
	}
}
