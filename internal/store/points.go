package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AwardPoints appends a ledger row and bumps the cached user total in one
// transaction. It returns the user's new total.
func (s *PostgresStore) AwardPoints(ctx context.Context, event PointEvent) (int, error) {
	var total int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO point_events (user_id, project_id, reason, points) VALUES ($1, $2, $3, $4)
		`, event.UserID, event.ProjectID, event.Reason, event.Points); err != nil {
			return fmt.Errorf("insert point event: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `
			UPDATE users SET points = points + $2 WHERE id=$1 RETURNING points
		`, event.UserID, event.Points).Scan(&total); err != nil {
			return fmt.Errorf("update user points: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Leaderboard ranks users by total points. A non-positive limit returns every
// user with points.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	query := `
		SELECT id, username, display_name, avatar_url, points
		FROM users
		WHERE points > 0
		ORDER BY points DESC, username ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()
	return collectLeaderboard(rows)
}

func (s *PostgresStore) ProjectLeaderboard(ctx context.Context, projectID string, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar_url, SUM(e.points)::INT AS total
		FROM point_events e
		JOIN users u ON u.id = e.user_id
		WHERE e.project_id = $1
		GROUP BY u.id, u.username, u.display_name, u.avatar_url
		ORDER BY total DESC, u.username ASC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("project leaderboard: %w", err)
	}
	defer rows.Close()
	return collectLeaderboard(rows)
}

func collectLeaderboard(rows *sql.Rows) ([]LeaderboardEntry, error) {
	items := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var item LeaderboardEntry
		if err := rows.Scan(&item.UserID, &item.Username, &item.DisplayName, &item.AvatarURL, &item.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		item.Rank = len(items) + 1
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) PointHistory(ctx context.Context, userID string, limit int) ([]PointEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, reason, points, created_at
		FROM point_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("point history: %w", err)
	}
	defer rows.Close()

	items := make([]PointEvent, 0)
	for rows.Next() {
		var item PointEvent
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProjectID, &item.Reason, &item.Points, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate point events: %w", err)
	}
	return items, nil
}
