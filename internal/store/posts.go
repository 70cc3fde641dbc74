package store

import (
	"context"
	"database/sql"
	"fmt"
)

const postSelect = `
	SELECT p.id, p.project_id, p.author_id, u.display_name, p.kind, p.title, p.body, p.image_url,
		(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id AND l.active),
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1 AND l.active),
		p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

func scanPost(row rowScanner) (Post, error) {
	var post Post
	err := row.Scan(
		&post.ID,
		&post.ProjectID,
		&post.AuthorID,
		&post.AuthorName,
		&post.Kind,
		&post.Title,
		&post.Body,
		&post.ImageURL,
		&post.Likes,
		&post.Comments,
		&post.LikedByMe,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return post, err
}

func (s *PostgresStore) InsertPost(ctx context.Context, post Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, project_id, author_id, kind, title, body, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, post.ID, post.ProjectID, post.AuthorID, post.Kind, post.Title, post.Body, post.ImageURL)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPost loads a post with counters; LikedByMe is evaluated for viewerID.
func (s *PostgresStore) GetPost(ctx context.Context, postID, viewerID string) (Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $2`, viewerID, postID))
}

// ListPosts pages newest first. kind may be "" for every kind.
func (s *PostgresStore) ListPosts(ctx context.Context, projectID, viewerID, kind string, limit, offset int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE p.project_id = $2 AND ($3 = '' OR p.kind = $3)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4 OFFSET $5
	`, viewerID, projectID, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdatePost(ctx context.Context, post Post) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts SET title=$2, body=$3, image_url=$4, updated_at=NOW() WHERE id=$1
	`, post.ID, post.Title, post.Body, post.ImageURL)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeletePost(ctx context.Context, postID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(result)
}

// TogglePostLike flips the caller's like. First is true only the very first
// time the user likes the post; re-likes after an unlike do not count.
func (s *PostgresStore) TogglePostLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	var out LikeResult
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx, `
			SELECT active FROM post_likes WHERE post_id=$1 AND user_id=$2 FOR UPDATE
		`, postID, userID).Scan(&active)
		switch {
		case isNoRows(err):
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO post_likes (post_id, user_id, active) VALUES ($1, $2, TRUE)
			`, postID, userID); err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
			out.Liked = true
			out.First = true
		case err != nil:
			return fmt.Errorf("load like: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, `
				UPDATE post_likes SET active=$3, updated_at=NOW() WHERE post_id=$1 AND user_id=$2
			`, postID, userID, !active); err != nil {
				return fmt.Errorf("update like: %w", err)
			}
			out.Liked = !active
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM post_likes WHERE post_id=$1 AND active
		`, postID).Scan(&out.Likes); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	return out, nil
}

const commentSelect = `
	SELECT c.id, c.post_id, p.project_id, c.author_id, u.display_name, c.body, c.created_at
	FROM comments c
	JOIN posts p ON p.id = c.post_id
	JOIN users u ON u.id = c.author_id
`

func scanComment(row rowScanner) (Comment, error) {
	var comment Comment
	err := row.Scan(&comment.ID, &comment.PostID, &comment.ProjectID, &comment.AuthorID, &comment.AuthorName, &comment.Body, &comment.CreatedAt)
	return comment, err
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, body) VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.PostID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id=$1`, commentID))
}

func (s *PostgresStore) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE c.post_id=$1 ORDER BY c.created_at ASC, c.id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(result)
}
