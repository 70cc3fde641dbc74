// Package realtime fans events out to WebSocket subscribers grouped in rooms
// ("user:<id>", "project:<id>"), optionally relayed across instances through
// Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/metrics"
)

// QueueSize is the per-subscriber buffer; a full buffer drops frames.
const QueueSize = 64

// Frame is the server-to-client envelope.
type Frame struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

func UserRoom(userID string) string {
	return "user:" + userID
}

func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

type Subscriber struct {
	UserID string
	ch     chan Frame
	rooms  map[string]struct{}
	closed bool
}

// Frames is closed once the subscriber is removed from the hub.
func (s *Subscriber) Frames() <-chan Frame {
	return s.ch
}

// Hub tracks local subscribers by room.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscriber]struct{}
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Subscriber]struct{}),
		metrics: m,
		logger:  logging.For("realtime"),
	}
}

func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{UserID: userID, ch: make(chan Frame, QueueSize), rooms: make(map[string]struct{})}
	h.metrics.ConnectionOpened()
	return sub
}

func (h *Hub) Join(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	sub.rooms[room] = struct{}{}
}

func (h *Hub) Leave(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub, room)
}

func (h *Hub) leaveLocked(sub *Subscriber, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(sub.rooms, room)
}

// Unsubscribe leaves every room and closes the frame channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	for room := range sub.rooms {
		h.leaveLocked(sub, room)
	}
	sub.closed = true
	close(sub.ch)
	h.metrics.ConnectionClosed()
}

// Deliver hands frame to every local subscriber of its room without blocking.
func (h *Hub) Deliver(frame Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.rooms[frame.Room] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			h.metrics.FrameDropped()
			h.logger.Warn().Str("room", frame.Room).Str("type", frame.Type).Str(logging.USER, sub.UserID).Msg("subscriber queue full, frame dropped")
		}
	}
	return delivered
}

// RoomSize reports local subscribers in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
