package app

import (
	"net/http"
)

func notFoundRoute(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routePosts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		notFoundRoute(w)
		return
	}
	postID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPut, http.MethodPatch:
			var body UpdatePostInput
			if !decodeOrFail(w, r, &body) {
				return
			}
			payload, err := s.service.UpdatePost(r.Context(), session, postID, body)
			respond(w, payload, err)
		case http.MethodDelete:
			writeOK(w, s.service.DeletePost(r.Context(), session, postID))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "like" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		payload, err := s.service.ToggleLike(r.Context(), session, postID)
		respond(w, payload, err)
		return
	}

	if len(parts) == 2 && parts[1] == "comments" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListComments(r.Context(), session, postID)
			respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Body string `json:"body"`
			}
			if !decodeOrFail(w, r, &body) {
				return
			}
			payload, err := s.service.AddComment(r.Context(), session, postID, body.Body)
			respondStatus(w, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	notFoundRoute(w)
}

func (s *HTTPServer) routeComments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 1 {
		notFoundRoute(w)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	writeOK(w, s.service.DeleteComment(r.Context(), session, parts[0]))
}

func (s *HTTPServer) routeTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		notFoundRoute(w)
		return
	}
	taskID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetTask(r.Context(), session, taskID)
			respond(w, payload, err)
		case http.MethodPut, http.MethodPatch:
			var body UpdateTaskInput
			if !decodeOrFail(w, r, &body) {
				return
			}
			payload, err := s.service.UpdateTask(r.Context(), session, taskID, body)
			respond(w, payload, err)
		case http.MethodDelete:
			writeOK(w, s.service.DeleteTask(r.Context(), session, taskID))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "subtasks" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.AddSubtask(r.Context(), session, taskID, body.Title)
		respondStatus(w, http.StatusCreated, payload, err)
		return
	}

	if len(parts) == 2 && parts[1] == "comments" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListTaskComments(r.Context(), session, taskID)
			respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Body string `json:"body"`
			}
			if !decodeOrFail(w, r, &body) {
				return
			}
			payload, err := s.service.AddTaskComment(r.Context(), session, taskID, body.Body)
			respondStatus(w, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	notFoundRoute(w)
}

func (s *HTTPServer) routeSubtasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 1 {
		notFoundRoute(w)
		return
	}
	subtaskID := parts[0]
	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var body struct {
			Done *bool `json:"done"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		if body.Done == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "done is required", nil)
			return
		}
		payload, err := s.service.SetSubtaskDone(r.Context(), session, subtaskID, *body.Done)
		respond(w, payload, err)
	case http.MethodDelete:
		writeOK(w, s.service.DeleteSubtask(r.Context(), session, subtaskID))
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) routeFiles(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 || len(parts) > 2 {
		notFoundRoute(w)
		return
	}
	fileID := parts[0]

	if len(parts) == 2 {
		if parts[1] != "download" || r.Method != http.MethodGet {
			notFoundRoute(w)
			return
		}
		_, signed, err := s.service.FileURL(r.Context(), session, fileID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		http.Redirect(w, r, signed, http.StatusFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		payload, _, err := s.service.FileURL(r.Context(), session, fileID)
		respond(w, payload, err)
	case http.MethodDelete:
		writeOK(w, s.service.DeleteFile(r.Context(), session, fileID))
	default:
		methodNotAllowed(w)
	}
}
