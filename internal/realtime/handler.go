package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Authorizer resolves the connecting user and decides room access.
type Authorizer interface {
	Authenticate(ctx context.Context, token string) (string, error)
	CanJoin(ctx context.Context, userID, room string) bool
}

// ClientFrame is what browsers send: join, leave or ping.
type ClientFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type Handler struct {
	hub            *Hub
	auth           Authorizer
	originPatterns []string
	now            func() time.Time
}

func NewHandler(hub *Hub, auth Authorizer, originPatterns []string) *Handler {
	return &Handler{hub: hub, auth: auth, originPatterns: originPatterns, now: func() time.Time { return time.Now().UTC() }}
}

// OriginPatterns splits a comma separated CORS origin setting; "*" allows any.
func OriginPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(strings.TrimPrefix(p, "https://"), "http://")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	userID, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","error":"valid token required"}`))
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(h.originPatterns) > 0 {
		opts.OriginPatterns = h.originPatterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(sub)
	h.hub.Join(sub, UserRoom(userID))

	// Replies produced by the read loop; writes stay on this goroutine.
	replies := make(chan Frame, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			var in ClientFrame
			if err := wsjson.Read(ctx, conn, &in); err != nil {
				readErr <- err
				return
			}
			if reply, ok := h.handleClientFrame(ctx, sub, in); ok {
				select {
				case replies <- reply:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	write := func(frame Frame) bool {
		writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
		err := wsjson.Write(writeCtx, conn, frame)
		cancelWrite()
		if err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
			return false
		}
		return true
	}

	if !write(Frame{Type: "ready", Room: UserRoom(userID), At: h.now()}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case frame, ok := <-sub.Frames():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			if !write(frame) {
				return
			}
		}
	}
}

func (h *Handler) handleClientFrame(ctx context.Context, sub *Subscriber, in ClientFrame) (Frame, bool) {
	room := strings.TrimSpace(in.Room)
	switch in.Type {
	case "ping":
		return Frame{Type: "pong", At: h.now()}, true
	case "join":
		if !h.canJoin(ctx, sub.UserID, room) {
			return h.errorFrame(room, "cannot join room"), true
		}
		h.hub.Join(sub, room)
		return Frame{Type: "joined", Room: room, At: h.now()}, true
	case "leave":
		if room == UserRoom(sub.UserID) {
			return Frame{}, false
		}
		h.hub.Leave(sub, room)
		return Frame{Type: "left", Room: room, At: h.now()}, true
	default:
		return h.errorFrame(room, "unknown frame type"), true
	}
}

func (h *Handler) canJoin(ctx context.Context, userID, room string) bool {
	switch {
	case room == UserRoom(userID):
		return true
	case strings.HasPrefix(room, "project:"):
		return h.auth.CanJoin(ctx, userID, room)
	default:
		return false
	}
}

func (h *Handler) errorFrame(room, message string) Frame {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return Frame{Type: "error", Room: room, Payload: payload, At: h.now()}
}
