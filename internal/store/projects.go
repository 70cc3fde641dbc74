package store

import (
	"context"
	"database/sql"
	"fmt"
)

const projectColumns = `p.id, p.name, p.description, p.category, p.status, p.visibility, p.owner_id, p.created_at, p.updated_at`

func scanProject(row rowScanner, extra ...any) (Project, error) {
	var project Project
	dest := []any{
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Category,
		&project.Status,
		&project.Visibility,
		&project.OwnerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return project, err
}

// InsertProject creates the project and its owner membership together.
func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, category, status, visibility, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, project.ID, project.Name, project.Description, project.Category, project.Status, project.Visibility, project.OwnerID); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_members (project_id, user_id, role)
			VALUES ($1, $2, 'owner')
		`, project.ID, project.OwnerID); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id=$1`, projectID))
}

// ListProjectsForUser returns the caller's projects, optionally narrowed by
// status and role.
func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID, status, role string) ([]ProjectMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`, m.role,
			(SELECT COUNT(*) FROM project_members c WHERE c.project_id = p.id)
		FROM project_members m
		JOIN projects p ON p.id = m.project_id
		WHERE m.user_id = $1
			AND ($2 = '' OR p.status = $2)
			AND ($3 = '' OR m.role = $3)
		ORDER BY p.updated_at DESC, p.id ASC
	`, userID, status, role)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectMembership, 0)
	for rows.Next() {
		var item ProjectMembership
		project, err := scanProject(rows, &item.Role, &item.MemberCount)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		item.Project = project
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListProjectIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM project_members WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project Project) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name=$2, description=$3, category=$4, status=$5, visibility=$6, updated_at=NOW()
		WHERE id=$1
	`, project.ID, project.Name, project.Description, project.Category, project.Status, project.Visibility)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) TouchProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET updated_at=NOW() WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(result)
}

// GetMemberRole returns "" when the user is not a member.
func (s *PostgresStore) GetMemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM project_members WHERE project_id=$1 AND user_id=$2`, projectID, userID).Scan(&role)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get member role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.project_id, m.user_id, m.role, m.joined_at, u.username, u.display_name, u.avatar_url, u.email
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'member' THEN 2 ELSE 3 END, u.username ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.ProjectID, &item.UserID, &item.Role, &item.JoinedAt, &item.Username, &item.DisplayName, &item.AvatarURL, &item.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMemberIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM project_members WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// AddMember reports false when the user already belongs to the project.
func (s *PostgresStore) AddMember(ctx context.Context, projectID, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID, role)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, projectID, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE project_members SET role=$3
		WHERE project_id=$1 AND user_id=$2 AND role <> 'owner'
	`, projectID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM project_members WHERE project_id=$1 AND user_id=$2 AND role <> 'owner'
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return requireAffected(result)
}

// TransferOwnership hands the project to an existing member and demotes the
// previous owner to admin.
func (s *PostgresStore) TransferOwnership(ctx context.Context, projectID, fromUserID, toUserID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE project_members SET role='owner' WHERE project_id=$1 AND user_id=$2
		`, projectID, toUserID)
		if err != nil {
			return fmt.Errorf("promote new owner: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE project_members SET role='admin' WHERE project_id=$1 AND user_id=$2
		`, projectID, fromUserID); err != nil {
			return fmt.Errorf("demote previous owner: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projects SET owner_id=$2, updated_at=NOW() WHERE id=$1
		`, projectID, toUserID); err != nil {
			return fmt.Errorf("update project owner: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ProjectCounts(ctx context.Context, projectID string) (ProjectCounts, error) {
	var counts ProjectCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM posts WHERE project_id=$1),
			(SELECT COUNT(*) FROM tasks WHERE project_id=$1),
			(SELECT COUNT(*) FROM tasks WHERE project_id=$1 AND status <> 'done'),
			(SELECT COUNT(*) FROM files WHERE project_id=$1),
			(SELECT COUNT(*) FROM project_members WHERE project_id=$1)
	`, projectID).Scan(&counts.Posts, &counts.Tasks, &counts.OpenTasks, &counts.Files, &counts.Members)
	if err != nil {
		return ProjectCounts{}, fmt.Errorf("project counts: %w", err)
	}
	return counts, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	items := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		items = append(items, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return items, nil
}

// requireAffected turns a no-op write into sql.ErrNoRows.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
