package app

import (
	"net/http"
	"strings"
)

func (s *HTTPServer) routeUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.SearchUsers(r.Context(), r.URL.Query().Get("q"), limit)
		respond(w, payload, err)
		return
	}

	if parts[0] == "me" {
		s.routeMe(w, r, session, parts[1:])
		return
	}

	userID := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		payload, err := s.service.GetProfile(r.Context(), session, userID)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "follow" && r.Method == http.MethodPost:
		payload, err := s.service.Follow(r.Context(), session, userID)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "follow" && r.Method == http.MethodDelete:
		payload, err := s.service.Unfollow(r.Context(), session, userID)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "followers" && r.Method == http.MethodGet:
		payload, err := s.service.ListFollowers(r.Context(), userID)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "following" && r.Method == http.MethodGet:
		payload, err := s.service.ListFollowing(r.Context(), userID)
		respond(w, payload, err)
	default:
		notFoundRoute(w)
	}
}

func (s *HTTPServer) routeMe(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.Me(r.Context(), session)
		respond(w, payload, err)
	case len(parts) == 0 && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var body UpdateProfileInput
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateProfile(r.Context(), session, body)
		respond(w, payload, err)
	case len(parts) == 1 && parts[0] == "avatar" && r.Method == http.MethodPost:
		file, header, ok := readMultipartFile(w, r, maxAvatarBytes)
		if !ok {
			return
		}
		defer file.Close()
		payload, err := s.service.UploadAvatar(r.Context(), session, header.Header.Get("Content-Type"), header.Size, file)
		respond(w, payload, err)
	case len(parts) == 1 && parts[0] == "points" && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.PointHistory(r.Context(), session, limit)
		respond(w, payload, err)
	default:
		notFoundRoute(w)
	}
}

func (s *HTTPServer) routeNotifications(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		unreadOnly := r.URL.Query().Get("unread") == "true"
		payload, err := s.service.ListNotifications(r.Context(), session, unreadOnly, limit)
		respond(w, payload, err)
	case len(parts) == 1 && parts[0] == "unread-count" && r.Method == http.MethodGet:
		count, err := s.service.UnreadCount(r.Context(), session)
		respond(w, map[string]any{"count": count}, err)
	case len(parts) == 1 && parts[0] == "read-all" && r.Method == http.MethodPost:
		updated, err := s.service.MarkAllRead(r.Context(), session)
		respond(w, map[string]any{"updated": updated}, err)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		writeOK(w, s.service.MarkRead(r.Context(), session, parts[0]))
	default:
		notFoundRoute(w)
	}
}

func (s *HTTPServer) handleLeaderboard(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 0 {
		notFoundRoute(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	payload, err := s.service.Leaderboard(r.Context(), limit)
	respond(w, payload, err)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 0 {
		notFoundRoute(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}
	query := r.URL.Query()
	payload, err := s.service.Search(r.Context(), session, query.Get("q"), strings.TrimSpace(query.Get("type")), limit, offset)
	respond(w, payload, err)
}
