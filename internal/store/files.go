package store

import (
	"context"
	"fmt"
)

const fileSelect = `
	SELECT f.id, f.project_id, f.uploader_id, u.display_name, f.name, f.content_type, f.size_bytes, f.object_key, f.created_at
	FROM files f
	JOIN users u ON u.id = f.uploader_id
`

func scanFile(row rowScanner) (File, error) {
	var file File
	err := row.Scan(&file.ID, &file.ProjectID, &file.UploaderID, &file.UploaderName, &file.Name, &file.ContentType, &file.Size, &file.ObjectKey, &file.CreatedAt)
	return file, err
}

func (s *PostgresStore) InsertFile(ctx context.Context, file File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, project_id, uploader_id, name, content_type, size_bytes, object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, file.ID, file.ProjectID, file.UploaderID, file.Name, file.ContentType, file.Size, file.ObjectKey)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFile(ctx context.Context, fileID string) (File, error) {
	return scanFile(s.db.QueryRowContext(ctx, fileSelect+` WHERE f.id=$1`, fileID))
}

func (s *PostgresStore) ListFiles(ctx context.Context, projectID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelect+` WHERE f.project_id=$1 ORDER BY f.created_at DESC, f.id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	items := make([]File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		items = append(items, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, fileID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireAffected(result)
}
