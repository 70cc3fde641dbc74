package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sharesync/api/internal/util"
)

// PgSearch is the Postgres ILIKE fallback used while Meilisearch is down.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Search runs a UNION ALL over projects, posts and tasks the caller may read.
func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	// $1 pattern, $2 readable project ids
	args := []any{"%" + util.EscapeLike(strings.TrimSpace(q.Text)) + "%", nonNilIDs(q.ProjectIDs)}
	access := "(p.id = ANY($2) OR p.visibility = 'public')"

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, `
			SELECT 'project'::text AS type, p.id, p.name AS title, p.description AS snippet, p.id AS project_id, p.updated_at AS ts
			FROM projects p
			WHERE `+access+` AND (p.name ILIKE $1 OR p.description ILIKE $1 OR p.category ILIKE $1)`)
	}
	if q.FilterType == "" || q.FilterType == ResultPost {
		subQueries = append(subQueries, `
			SELECT 'post'::text AS type, po.id, po.title, po.body AS snippet, po.project_id, po.created_at AS ts
			FROM posts po
			JOIN projects p ON p.id = po.project_id
			WHERE `+access+` AND (po.title ILIKE $1 OR po.body ILIKE $1)`)
	}
	if q.FilterType == "" || q.FilterType == ResultTask {
		subQueries = append(subQueries, `
			SELECT 'task'::text AS type, t.id, t.title, t.description AS snippet, t.project_id, t.updated_at AS ts
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE `+access+` AND (t.title ILIKE $1 OR t.description ILIKE $1)`)
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id
		FROM (%s) sub
		ORDER BY ts DESC, id ASC
		LIMIT %d OFFSET %d`, union, limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.Snippet = truncate(r.Snippet, 240)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadProjectRecords returns the project and its posts and tasks, ready for
// (re)indexing.
func (p *PgSearch) LoadProjectRecords(ctx context.Context, projectID string) ([]ProjectRecord, []PostRecord, []TaskRecord, error) {
	return p.load(ctx, "WHERE p.id = $1", projectID)
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []PostRecord, []TaskRecord, error) {
	return p.load(ctx, "")
}

func (p *PgSearch) load(ctx context.Context, where string, args ...any) ([]ProjectRecord, []PostRecord, []TaskRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.category, p.status, p.visibility
		FROM projects p `+where, args...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var r ProjectRecord
		if err := projectRows.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.Status, &r.ProjectVisibility); err != nil {
			return nil, nil, nil, fmt.Errorf("scan project: %w", err)
		}
		r.ProjectID = r.ID
		projects = append(projects, r)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT po.id, po.title, po.body, po.kind, po.project_id, p.visibility
		FROM posts po
		JOIN projects p ON p.id = po.project_id `+where, args...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var r PostRecord
		if err := postRows.Scan(&r.ID, &r.Title, &r.Body, &r.Kind, &r.ProjectID, &r.ProjectVisibility); err != nil {
			return nil, nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, r)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	taskRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.description, t.status, t.project_id, p.visibility
		FROM tasks t
		JOIN projects p ON p.id = t.project_id `+where, args...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	defer taskRows.Close()

	tasks := make([]TaskRecord, 0)
	for taskRows.Next() {
		var r TaskRecord
		if err := taskRows.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &r.ProjectID, &r.ProjectVisibility); err != nil {
			return nil, nil, nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, r)
	}
	if err := taskRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return projects, posts, tasks, nil
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
