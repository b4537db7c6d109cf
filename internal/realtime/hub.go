// Package realtime pushes live events to the viewers of a video. Every video
// has a room; a connection is in at most one room at a time and only receives
// events broadcast to that room.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one live client connection. Send must not block: a slow or closed
// connection reports an error and is dropped from its room. The hub calls Send
// while holding its lock, so Send must not call back into the Hub.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// DeliveryReport summarises one broadcast.
type DeliveryReport struct {
	Room      string `json:"room"`
	Delivered int    `json:"delivered"`
	Dropped   int    `json:"dropped"`
}

type HubConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Hub tracks room membership. rooms and memberOf always describe the same
// relation; both are guarded by mu.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu       sync.RWMutex
	rooms    map[string]map[Conn]struct{}
	memberOf map[Conn]string
}

func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Hub{
		logger:   logging.WithComponent(logger, "realtime"),
		metrics:  recorder,
		rooms:    make(map[string]map[Conn]struct{}),
		memberOf: make(map[Conn]string),
	}
}

// Join puts conn in roomID, leaving any room it was in before. Joining the
// current room again is a no-op.
func (h *Hub) Join(conn Conn, roomID string) {
	if conn == nil || roomID == "" {
		return
	}
	h.mu.Lock()
	if current, ok := h.memberOf[conn]; ok {
		if current == roomID {
			h.mu.Unlock()
			return
		}
		h.removeLocked(conn, current)
	}
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[Conn]struct{})
		h.rooms[roomID] = members
	}
	members[conn] = struct{}{}
	h.memberOf[conn] = roomID
	rooms := len(h.rooms)
	h.mu.Unlock()

	h.metrics.SetRooms(rooms)
	h.logger.Debug("connection joined room", "conn", conn.ID(), "room", roomID)
}

// Leave removes conn from its room. It reports the room it left, if any.
func (h *Hub) Leave(conn Conn) (string, bool) {
	h.mu.Lock()
	roomID, ok := h.memberOf[conn]
	if ok {
		h.removeLocked(conn, roomID)
	}
	rooms := len(h.rooms)
	h.mu.Unlock()

	if ok {
		h.metrics.SetRooms(rooms)
		h.logger.Debug("connection left room", "conn", conn.ID(), "room", roomID)
	}
	return roomID, ok
}

func (h *Hub) removeLocked(conn Conn, roomID string) {
	delete(h.memberOf, conn)
	if members := h.rooms[roomID]; members != nil {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RoomOf reports the room conn is currently in.
func (h *Hub) RoomOf(conn Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomID, ok := h.memberOf[conn]
	return roomID, ok
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Rooms lists the rooms with at least one member, sorted.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	rooms := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		rooms = append(rooms, id)
	}
	h.mu.RUnlock()
	slices.Sort(rooms)
	return rooms
}

// Broadcast sends event to every member of roomID and to no one else. Sends
// happen under the read lock so membership cannot change mid fan-out. Members
// whose Send fails are removed and closed unless they moved to another room
// in the meantime.
func (h *Hub) Broadcast(ctx context.Context, roomID string, event Event) DeliveryReport {
	report := DeliveryReport{Room: roomID}
	if roomID == "" {
		return report
	}
	payload, err := json.Marshal(frame{Type: frameEvent, VideoID: roomID, Event: &event})
	if err != nil {
		h.logger.Error("encode realtime event", "room", roomID, "type", event.Type, "error", err)
		return report
	}

	var failed []Conn
	h.mu.RLock()
	for conn := range h.rooms[roomID] {
		if ctx.Err() != nil {
			break
		}
		if err := conn.Send(payload); err != nil {
			failed = append(failed, conn)
			h.logger.Warn("dropping realtime connection", "conn", conn.ID(), "room", roomID, "error", err)
			continue
		}
		report.Delivered++
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		dropped := failed[:0]
		for _, conn := range failed {
			if h.memberOf[conn] == roomID {
				h.removeLocked(conn, roomID)
				dropped = append(dropped, conn)
			}
		}
		rooms := len(h.rooms)
		h.mu.Unlock()
		h.metrics.SetRooms(rooms)
		for _, conn := range dropped {
			_ = conn.Close()
		}
		report.Dropped = len(dropped)
	}

	h.metrics.Deliveries("delivered", report.Delivered)
	h.metrics.Deliveries("dropped", report.Dropped)
	return report
}

// CloseAll disconnects every member, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.memberOf))
	for conn := range h.memberOf {
		conns = append(conns, conn)
	}
	h.rooms = make(map[string]map[Conn]struct{})
	h.memberOf = make(map[Conn]string)
	h.mu.Unlock()

	h.metrics.SetRooms(0)
	for _, conn := range conns {
		_ = conn.Close()
	}
}
