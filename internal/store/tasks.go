package store

import (
	"context"
	"fmt"
)

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority,
		t.assignee_id, COALESCE(a.display_name, ''), t.due_date,
		t.created_by, c.display_name, t.completed_at, t.completion_awarded,
		(SELECT COUNT(*) FROM task_comments tc WHERE tc.task_id = t.id),
		t.created_at, t.updated_at
	FROM tasks t
	JOIN users c ON c.id = t.created_by
	LEFT JOIN users a ON a.id = t.assignee_id
`

func scanTask(row rowScanner) (Task, error) {
	var task Task
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssigneeID,
		&task.AssigneeName,
		&task.DueDate,
		&task.CreatedBy,
		&task.CreatedByName,
		&task.CompletedAt,
		&task.CompletionAwarded,
		&task.CommentCount,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return task, err
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority, assignee_id, due_date, created_by, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, task.AssigneeID, task.DueDate, task.CreatedBy, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id=$1`, taskID))
}

// ListTasks orders by workflow stage, then due date with undated tasks last.
func (s *PostgresStore) ListTasks(ctx context.Context, projectID, status, assigneeID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+`
		WHERE t.project_id = $1
			AND ($2 = '' OR t.status = $2)
			AND ($3 = '' OR t.assignee_id = $3)
		ORDER BY CASE t.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END,
			t.due_date ASC NULLS LAST,
			t.created_at ASC,
			t.id ASC
	`, projectID, status, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, status=$4, priority=$5, assignee_id=$6, due_date=$7, completed_at=$8, updated_at=NOW()
		WHERE id=$1
	`, task.ID, task.Title, task.Description, task.Status, task.Priority, task.AssigneeID, task.DueDate, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(result)
}

// MarkCompletionAwarded flips the award flag once; later calls return false.
func (s *PostgresStore) MarkCompletionAwarded(ctx context.Context, taskID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET completion_awarded=TRUE WHERE id=$1 AND NOT completion_awarded
	`, taskID)
	if err != nil {
		return false, fmt.Errorf("mark completion awarded: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark completion awarded rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(result)
}

const subtaskSelect = `
	SELECT s.id, s.task_id, t.project_id, s.title, s.done, s.created_at
	FROM subtasks s
	JOIN tasks t ON t.id = s.task_id
`

func scanSubtask(row rowScanner) (Subtask, error) {
	var subtask Subtask
	err := row.Scan(&subtask.ID, &subtask.TaskID, &subtask.ProjectID, &subtask.Title, &subtask.Done, &subtask.CreatedAt)
	return subtask, err
}

func (s *PostgresStore) InsertSubtask(ctx context.Context, subtask Subtask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, title, done) VALUES ($1, $2, $3, $4)
	`, subtask.ID, subtask.TaskID, subtask.Title, subtask.Done)
	if err != nil {
		return fmt.Errorf("insert subtask: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubtask(ctx context.Context, subtaskID string) (Subtask, error) {
	return scanSubtask(s.db.QueryRowContext(ctx, subtaskSelect+` WHERE s.id=$1`, subtaskID))
}

func (s *PostgresStore) ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error) {
	rows, err := s.db.QueryContext(ctx, subtaskSelect+` WHERE s.task_id=$1 ORDER BY s.created_at ASC, s.id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	items := make([]Subtask, 0)
	for rows.Next() {
		subtask, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		items = append(items, subtask)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetSubtaskDone(ctx context.Context, subtaskID string, done bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE subtasks SET done=$2 WHERE id=$1`, subtaskID, done)
	if err != nil {
		return fmt.Errorf("set subtask done: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteSubtask(ctx context.Context, subtaskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM subtasks WHERE id=$1`, subtaskID)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) InsertTaskComment(ctx context.Context, comment TaskComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, author_id, body) VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.TaskID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert task comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTaskComments(ctx context.Context, taskID string) ([]TaskComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.author_id, u.display_name, c.body, c.created_at
		FROM task_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task comments: %w", err)
	}
	defer rows.Close()

	items := make([]TaskComment, 0)
	for rows.Next() {
		var item TaskComment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.AuthorID, &item.AuthorName, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task comments: %w", err)
	}
	return items, nil
}
