// Package realtime provides the room-based publish/subscribe layer: rooms
// keyed by group, global group, and user, with SSE delivery to connected
// subscribers and per-room presence snapshots.
package realtime

import (
	"fmt"
	"sync"

	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

// Event names pushed over the wire.
const (
	EventConnected         = "connected"
	EventLeadApproved      = "lead-approved"
	EventNotificationPush  = "notification-pushed"
	EventMembershipChanged = "membership-changed"
	EventPresenceChanged   = "group-presence-changed"
)

// Event is a payload delivered to a subscriber.
type Event struct {
	Name    string      `json:"name"`
	Room    string      `json:"room,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// GroupRoom returns the room name for a group of the given scope.
func GroupRoom(scope string, groupID uuid.UUID) string {
	if scope == "global" {
		return fmt.Sprintf("global-group:%s", groupID)
	}
	return fmt.Sprintf("group:%s", groupID)
}

// UserRoom returns the per-user room name.
func UserRoom(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

// Broadcaster is the injectable pub/sub surface. Room membership is an
// explicit table, so presence computation and broadcasts are testable
// without a live transport.
type Broadcaster interface {
	// Join subscribes a connection to a room.
	Join(connID uuid.UUID, room string)
	// Leave unsubscribes a connection from a room.
	Leave(connID uuid.UUID, room string)
	// Emit delivers an event to every connection in the room. Best-effort,
	// at-most-once: a connection with a full buffer is skipped.
	Emit(room, name string, payload interface{})
	// ListMembers returns the connection IDs currently in the room.
	ListMembers(room string) []uuid.UUID
	// UserOf resolves a connection to its authenticated user.
	UserOf(connID uuid.UUID) (uuid.UUID, bool)
	// UserConnections returns the live connection IDs of a user.
	UserConnections(userID uuid.UUID) []uuid.UUID
}

// Connection is one live subscriber stream.
type Connection struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Events chan Event
}

// Hub is the in-process Broadcaster. All state is guarded by one mutex;
// sends never block under it.
type Hub struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]*Connection
	userConns map[uuid.UUID][]uuid.UUID
	rooms     map[string]map[uuid.UUID]struct{}
	connRooms map[uuid.UUID]map[string]struct{}
	log       *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		conns:     make(map[uuid.UUID]*Connection),
		userConns: make(map[uuid.UUID][]uuid.UUID),
		rooms:     make(map[string]map[uuid.UUID]struct{}),
		connRooms: make(map[uuid.UUID]map[string]struct{}),
		log:       log,
	}
}

var _ Broadcaster = (*Hub)(nil)

// Register creates a connection for the user. The caller owns the returned
// stream and must Unregister it when the transport closes.
func (h *Hub) Register(userID uuid.UUID) *Connection {
	conn := &Connection{
		ID:     uuid.New(),
		UserID: userID,
		Events: make(chan Event, 32),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.userConns[userID] = append(h.userConns[userID], conn.ID)
	h.connRooms[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	return conn
}

// Unregister removes the connection from every room and closes its stream.
// Unregistering a connection the hub no longer knows (already unregistered,
// or dropped by Close) is a no-op.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.conns[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}
	for room := range h.connRooms[conn.ID] {
		h.leaveLocked(conn.ID, room)
	}
	delete(h.connRooms, conn.ID)
	delete(h.conns, conn.ID)

	ids := h.userConns[conn.UserID]
	for i, id := range ids {
		if id == conn.ID {
			h.userConns[conn.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(h.userConns[conn.UserID]) == 0 {
		delete(h.userConns, conn.UserID)
	}
	// Closed under the lock: Emit sends while holding the read lock, so a
	// close can never race a send.
	close(conn.Events)
	h.mu.Unlock()
}

// Join subscribes a connection to a room.
func (h *Hub) Join(connID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[uuid.UUID]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	h.connRooms[connID][room] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(connID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, room)
}

func (h *Hub) leaveLocked(connID uuid.UUID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.connRooms[connID]; ok {
		delete(rooms, room)
	}
}

// Emit delivers an event to every connection in the room. A subscriber whose
// buffer is full is skipped; it recovers the missed event on its next fetch.
// Sends happen under the read lock. They never block, and holding the lock
// keeps them mutually exclusive with the channel close in Unregister/Close.
func (h *Hub) Emit(room, name string, payload interface{}) {
	event := Event{Name: name, Room: room, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.rooms[room] {
		conn, ok := h.conns[connID]
		if !ok {
			continue
		}
		select {
		case conn.Events <- event:
		default:
			if h.log != nil {
				h.log.BroadcastDropped(room, name, conn.UserID.String())
			}
		}
	}
}

// ListMembers returns the connection IDs currently subscribed to the room.
func (h *Hub) ListMembers(room string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		ids = append(ids, connID)
	}
	return ids
}

// UserOf resolves a connection ID to its user.
func (h *Hub) UserOf(connID uuid.UUID) (uuid.UUID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.conns[connID]
	if !ok {
		return uuid.Nil, false
	}
	return conn.UserID, true
}

// ConnectionRooms returns the rooms a connection is currently subscribed to.
func (h *Hub) ConnectionRooms(connID uuid.UUID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.connRooms[connID]))
	for room := range h.connRooms[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// UserConnections returns the live connection IDs of a user.
func (h *Hub) UserConnections(userID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uuid.UUID, len(h.userConns[userID]))
	copy(ids, h.userConns[userID])
	return ids
}

// Close drops every connection. Streams are closed under the lock for the
// same reason as in Unregister.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.conns {
		close(conn.Events)
	}
	h.conns = make(map[uuid.UUID]*Connection)
	h.userConns = make(map[uuid.UUID][]uuid.UUID)
	h.rooms = make(map[string]map[uuid.UUID]struct{})
	h.connRooms = make(map[uuid.UUID]map[string]struct{})
}
