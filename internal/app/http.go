package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"sharesync/api/internal/auth"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/metrics"
	"sharesync/api/internal/session"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    *metrics.Metrics
	realtime   http.Handler
	logger     zerolog.Logger
}

// NewHTTPServer wires the JSON API. metrics and realtime may be nil, which
// disables /metrics and /api/realtime respectively.
func NewHTTPServer(service *Service, corsOrigin string, m *metrics.Metrics, realtime http.Handler) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		metrics:    m,
		realtime:   realtime,
		logger:     logging.For("http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metrics != nil {
		w.Header().Del("Content-Type")
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/realtime" {
		if s.realtime == nil {
			writeError(w, http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Realtime is not enabled", nil)
			return
		}
		w.Header().Del("Content-Type")
		s.realtime.ServeHTTP(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/auth/") && r.Method == http.MethodPost {
		if s.routeAuth(w, r, strings.TrimPrefix(r.URL.Path, "/api/auth/")) {
			return
		}
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		s.handleSessionInfo(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		s.handleSessionRefresh(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		s.handleSessionLogout(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// Avatar links are embedded in <img> tags, which cannot send a bearer token.
	if r.Method == http.MethodGet && len(parts) == 5 && parts[0] == "api" && parts[1] == "users" && parts[3] == "avatar" {
		target, err := s.service.AvatarURL(r.Context(), parts[2], parts[4])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "users":
		s.routeUsers(w, r, session, parts[2:])
	case "projects":
		s.routeProjects(w, r, session, parts[2:])
	case "posts":
		s.routePosts(w, r, session, parts[2:])
	case "comments":
		s.routeComments(w, r, session, parts[2:])
	case "tasks":
		s.routeTasks(w, r, session, parts[2:])
	case "subtasks":
		s.routeSubtasks(w, r, session, parts[2:])
	case "files":
		s.routeFiles(w, r, session, parts[2:])
	case "notifications":
		s.routeNotifications(w, r, session, parts[2:])
	case "leaderboard":
		s.handleLeaderboard(w, r, parts[2:])
	case "search":
		s.handleSearch(w, r, session, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.logger.Error().Err(err).Msg("session lookup failed")
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return current, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		s.metrics.ObserveRequest(r.Method, r.URL.Path, writer.status, elapsed)
		event := s.logger.Info()
		if writer.status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str(logging.REQUEST, requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func randomRequestID() string {
	return uuid.NewString()
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

// respond writes payload with 200, or the mapped error.
func respond(w http.ResponseWriter, payload any, err error) {
	respondStatus(w, http.StatusOK, payload, err)
}

func respondStatus(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, status, payload)
}

func writeOK(w http.ResponseWriter, err error) {
	respond(w, map[string]any{"ok": true}, err)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decodeOrFail decodes the JSON body and writes a 400 on failure.
func decodeOrFail(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// queryInt reads an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}
