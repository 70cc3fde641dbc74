package app

import (
	"context"
	"strings"

	"sharesync/api/internal/export"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/search"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// Search is scoped to the actor's projects plus public ones.
func (s *Service) Search(ctx context.Context, actor Session, text, kind string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if !search.ValidType(kind) {
		return search.Response{}, validationError("type must be project, post or task")
	}
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	projectIDs, err := s.store.ListProjectIDsForUser(ctx, actor.UserID)
	if err != nil {
		return search.Response{}, err
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(ctx, search.Query{
		Text:       text,
		FilterType: search.ResultType(kind),
		ProjectIDs: projectIDs,
		Limit:      clampLimit(limit, defaultSearchLimit, maxSearchLimit),
		Offset:     offset,
	}), nil
}

func (s *Service) ProjectReport(ctx context.Context, actor Session, projectID, rawFormat string) (*export.Result, error) {
	format, ok := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if !ok {
		return nil, export.ErrUnsupportedFormat
	}
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	result, err := s.reports.Export(ctx, export.Request{ProjectID: projectID, Format: format, ViewerID: actor.UserID})
	if err != nil {
		s.logger.Error().Err(err).Str(logging.PROJECT, projectID).Str("format", string(format)).Msg("project report failed")
		return nil, err
	}
	return result, nil
}

// Authenticate resolves a realtime connection's access token to a user ID.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	session, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return "", err
	}
	return session.UserID, nil
}

// CanJoin allows project rooms to anyone who can read the project.
func (s *Service) CanJoin(ctx context.Context, userID, room string) bool {
	projectID, ok := strings.CutPrefix(room, "project:")
	if !ok || projectID == "" {
		return false
	}
	_, err := s.authorize(ctx, Session{UserID: userID}, projectID, rbac.ActionRead)
	return err == nil
}
