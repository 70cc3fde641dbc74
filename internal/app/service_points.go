package app

import (
	"context"
	"sort"

	"sharesync/api/internal/logging"
	"sharesync/api/internal/points"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultHistoryLimit     = 50
	maxHistoryLimit         = 200
)

// award records points for reason. Scoring never fails the mutation that
// earned it.
func (s *Service) award(ctx context.Context, userID, projectID, reason string) {
	amount := points.For(reason)
	if amount == 0 || userID == "" {
		return
	}
	total, err := s.store.AwardPoints(ctx, store.PointEvent{
		UserID:    userID,
		ProjectID: projectID,
		Reason:    reason,
		Points:    amount,
	})
	if err != nil {
		s.logger.Error().Err(err).Str(logging.USER, userID).Str("reason", reason).Msg("award points")
		return
	}
	if s.board.Enabled() {
		if err := s.syncLeaderboard(ctx, userID, total); err != nil {
			s.logger.Warn().Err(err).Str(logging.USER, userID).Msg("leaderboard sync")
		}
	}
	s.publish(ctx, realtime.UserRoom(userID), "points", map[string]any{
		"reason":    reason,
		"points":    amount,
		"total":     total,
		"projectId": nilIfEmpty(projectID),
	})
}

// syncLeaderboard writes the user's committed total. A missing set is rebuilt
// whole from Postgres, never seeded with one member.
func (s *Service) syncLeaderboard(ctx context.Context, userID string, total int) error {
	size, err := s.board.Size(ctx)
	if err != nil {
		return err
	}
	if size == 0 {
		return s.rebuildLeaderboard(ctx)
	}
	return s.board.Set(ctx, userID, total)
}

func (s *Service) rebuildLeaderboard(ctx context.Context) error {
	entries, err := s.store.Leaderboard(ctx, 0)
	if err != nil {
		return err
	}
	scores := make([]points.Score, 0, len(entries))
	for _, entry := range entries {
		scores = append(scores, points.Score{UserID: entry.UserID, Points: entry.Points})
	}
	return s.board.Rebuild(ctx, scores)
}

// Leaderboard reads the Redis sorted set when available, rebuilding it from
// Postgres when empty, and falls back to Postgres on any cache error.
func (s *Service) Leaderboard(ctx context.Context, limit int) (map[string]any, error) {
	limit = clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit)
	if s.board.Enabled() {
		entries, err := s.cachedLeaderboard(ctx, limit)
		if err == nil {
			return map[string]any{"leaderboard": leaderboardPayload(entries), "source": "redis"}, nil
		}
		s.logger.Warn().Err(err).Msg("leaderboard cache unavailable, using postgres")
	}
	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"leaderboard": leaderboardPayload(entries), "source": "postgres"}, nil
}

func (s *Service) cachedLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	size, err := s.board.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		if err := s.rebuildLeaderboard(ctx); err != nil {
			return nil, err
		}
	}
	scores, err := s.board.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(scores))
	for i, score := range scores {
		ids[i] = score.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]store.LeaderboardEntry, 0, len(scores))
	for _, score := range scores {
		user, ok := users[score.UserID]
		if !ok || score.Points <= 0 {
			continue
		}
		entries = append(entries, store.LeaderboardEntry{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
			Points:      score.Points,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Username < entries[j].Username
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *Service) ProjectLeaderboard(ctx context.Context, actor Session, projectID string, limit int) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	entries, err := s.store.ProjectLeaderboard(ctx, projectID, clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit))
	if err != nil {
		return nil, err
	}
	return map[string]any{"leaderboard": leaderboardPayload(entries)}, nil
}

func (s *Service) PointHistory(ctx context.Context, actor Session, limit int) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.PointHistory(ctx, actor.UserID, clampLimit(limit, defaultHistoryLimit, maxHistoryLimit))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, map[string]any{
			"id":        event.ID,
			"reason":    event.Reason,
			"points":    event.Points,
			"projectId": nilIfEmpty(event.ProjectID),
			"createdAt": timestamp(event.CreatedAt),
		})
	}
	return map[string]any{"total": user.Points, "events": items}, nil
}
