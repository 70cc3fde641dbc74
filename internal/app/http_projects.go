package app

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

// multipartOverhead leaves room for boundaries and form fields around the file.
const multipartOverhead = 1 << 20

func (s *HTTPServer) routeProjects(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			payload, err := s.service.ListProjects(r.Context(), session, strings.TrimSpace(query.Get("status")), strings.TrimSpace(query.Get("role")))
			respond(w, payload, err)
		case http.MethodPost:
			var body CreateProjectInput
			if !decodeOrFail(w, r, &body) {
				return
			}
			payload, err := s.service.CreateProject(r.Context(), session, body)
			respondStatus(w, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	projectID := parts[0]
	if len(parts) == 1 {
		s.handleProject(w, r, session, projectID)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "share" && r.Method == http.MethodPost:
		var body struct {
			Identifiers []string `json:"identifiers"`
			Identifier  string   `json:"identifier"`
			Role        string   `json:"role"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		if body.Identifier != "" {
			body.Identifiers = append(body.Identifiers, body.Identifier)
		}
		payload, err := s.service.ShareProject(r.Context(), session, projectID, body.Identifiers, body.Role)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "leave" && r.Method == http.MethodPost:
		writeOK(w, s.service.LeaveProject(r.Context(), session, projectID))
	case len(parts) == 2 && parts[1] == "transfer" && r.Method == http.MethodPost:
		var body struct {
			UserID string `json:"userId"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.TransferOwnership(r.Context(), session, projectID, body.UserID)
		respond(w, payload, err)
	case len(parts) == 3 && parts[1] == "members":
		s.handleMember(w, r, session, projectID, parts[2])
	case len(parts) == 2 && parts[1] == "activity" && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.ListActivity(r.Context(), session, projectID, limit)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "leaderboard" && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.ProjectLeaderboard(r.Context(), session, projectID, limit)
		respond(w, payload, err)
	case len(parts) == 2 && parts[1] == "posts":
		s.handleProjectPosts(w, r, session, projectID)
	case len(parts) == 2 && parts[1] == "tasks":
		s.handleProjectTasks(w, r, session, projectID)
	case len(parts) == 2 && parts[1] == "files":
		s.handleProjectFiles(w, r, session, projectID)
	case len(parts) == 2 && parts[1] == "report" && r.Method == http.MethodPost:
		s.handleProjectReport(w, r, session, projectID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleProject(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetProject(r.Context(), session, projectID)
		respond(w, payload, err)
	case http.MethodPut, http.MethodPatch:
		var body UpdateProjectInput
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), session, projectID, body)
		respond(w, payload, err)
	case http.MethodDelete:
		writeOK(w, s.service.DeleteProject(r.Context(), session, projectID))
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleMember(w http.ResponseWriter, r *http.Request, session Session, projectID, userID string) {
	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var body struct {
			Role string `json:"role"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateMemberRole(r.Context(), session, projectID, userID, body.Role)
		respond(w, payload, err)
	case http.MethodDelete:
		writeOK(w, s.service.RemoveMember(r.Context(), session, projectID, userID))
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProjectPosts(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset")
		if !ok {
			return
		}
		kind := strings.TrimSpace(r.URL.Query().Get("kind"))
		payload, err := s.service.ListPosts(r.Context(), session, projectID, kind, limit, offset)
		respond(w, payload, err)
	case http.MethodPost:
		var body CreatePostInput
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.CreatePost(r.Context(), session, projectID, body)
		respondStatus(w, http.StatusCreated, payload, err)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProjectTasks(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		assignee := strings.TrimSpace(query.Get("assignee"))
		if assignee == "me" {
			assignee = session.UserID
		}
		payload, err := s.service.ListTasks(r.Context(), session, projectID, strings.TrimSpace(query.Get("status")), assignee)
		respond(w, payload, err)
	case http.MethodPost:
		var body CreateTaskInput
		if !decodeOrFail(w, r, &body) {
			return
		}
		payload, err := s.service.CreateTask(r.Context(), session, projectID, body)
		respondStatus(w, http.StatusCreated, payload, err)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProjectFiles(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.ListFiles(r.Context(), session, projectID)
		respond(w, payload, err)
	case http.MethodPost:
		limit := s.service.MaxUploadBytes()
		file, header, ok := readMultipartFile(w, r, limit)
		if !ok {
			return
		}
		defer file.Close()
		payload, err := s.service.UploadFile(r.Context(), session, projectID, UploadFileInput{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		respondStatus(w, http.StatusCreated, payload, err)
	default:
		methodNotAllowed(w)
	}
}

// readMultipartFile extracts the "file" form field, enforcing limit on the
// whole request body.
func readMultipartFile(w http.ResponseWriter, r *http.Request, limit int64) (multipart.File, *multipart.FileHeader, bool) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large", map[string]any{"maxBytes": limit})
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form with a file field is required", nil)
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form with a file field is required", nil)
		return nil, nil, false
	}
	return file, header, true
}

func (s *HTTPServer) handleProjectReport(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	var body struct {
		Format string `json:"format"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.ProjectReport(r.Context(), session, projectID, body.Format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
