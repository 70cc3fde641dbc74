package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertNotifications writes the whole fan-out batch or nothing.
func (s *PostgresStore) InsertNotifications(ctx context.Context, items []Notification) error {
	if len(items) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notifications (id, user_id, actor_id, type, project_id, entity_type, entity_id, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`)
		if err != nil {
			return fmt.Errorf("prepare notification insert: %w", err)
		}
		defer stmt.Close()
		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.ID, item.UserID, item.ActorID, item.Type, item.ProjectID, item.EntityType, item.EntityID, item.Message, item.CreatedAt); err != nil {
				return fmt.Errorf("insert notification: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.actor_id, u.display_name, n.type, n.project_id, n.entity_type, n.entity_id,
			n.message, n.read_at IS NOT NULL, n.created_at
		FROM notifications n
		JOIN users u ON u.id = n.actor_id
		WHERE n.user_id = $1 AND (NOT $2 OR n.read_at IS NULL)
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.UserID, &item.ActorID, &item.ActorName, &item.Type, &item.ProjectID, &item.EntityType, &item.EntityID, &item.Message, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead is scoped to the recipient; anyone else sees
// sql.ErrNoRows.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=COALESCE(read_at, NOW())
		WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) InsertActivity(ctx context.Context, item Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, project_id, actor_id, action, entity_type, entity_id, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.ProjectID, item.ActorID, item.Action, item.EntityType, item.EntityID, item.Summary, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.project_id, a.actor_id, u.display_name, a.action, a.entity_type, a.entity_id, a.summary, a.created_at
		FROM activity a
		JOIN users u ON u.id = a.actor_id
		WHERE a.project_id = $1
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var item Activity
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.ActorID, &item.ActorName, &item.Action, &item.EntityType, &item.EntityID, &item.Summary, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}
