package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"sharesync/api/internal/logging"
)

// Index is the write/read surface of the primary search engine.
type Index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexProjects(records []ProjectRecord) error
	IndexPosts(records []PostRecord) error
	IndexTasks(records []TaskRecord) error
	Delete(kind ResultType, ids ...string) error
}

// Fallback answers queries from the system of record.
type Fallback interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	LoadProjectRecords(ctx context.Context, projectID string) ([]ProjectRecord, []PostRecord, []TaskRecord, error)
	LoadAllRecords(ctx context.Context) ([]ProjectRecord, []PostRecord, []TaskRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to Postgres.
type Service struct {
	index    Index
	fallback Fallback
	logger   zerolog.Logger
	async    func(func())
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(index Index, fallback Fallback) *Service {
	return &Service{
		index:    index,
		fallback: fallback,
		logger:   logging.For("search"),
		async:    func(fn func()) { go fn() },
	}
}

func (s *Service) indexReady() bool {
	return s != nil && s.index != nil && s.index.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	empty := Response{Results: []Result{}, Total: 0, Query: q.Text}
	if q.Text == "" {
		return empty
	}
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("meilisearch error, falling back to postgres")
	}
	if s == nil || s.fallback == nil {
		return empty
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("postgres search failed")
		return empty
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func (s *Service) background(what, id string, fn func() error) {
	if !s.indexReady() {
		return
	}
	s.async(func() {
		if err := fn(); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg(what)
		}
	})
}

func (s *Service) IndexProject(record ProjectRecord) {
	record.ProjectID = record.ID
	s.background("index project", record.ID, func() error {
		return s.index.IndexProjects([]ProjectRecord{record})
	})
}

func (s *Service) IndexPost(record PostRecord) {
	s.background("index post", record.ID, func() error {
		return s.index.IndexPosts([]PostRecord{record})
	})
}

func (s *Service) IndexTask(record TaskRecord) {
	s.background("index task", record.ID, func() error {
		return s.index.IndexTasks([]TaskRecord{record})
	})
}

func (s *Service) DeletePost(id string) {
	s.background("delete post", id, func() error {
		return s.index.Delete(ResultPost, id)
	})
}

func (s *Service) DeleteTask(id string) {
	s.background("delete task", id, func() error {
		return s.index.Delete(ResultTask, id)
	})
}

// ReindexProject refreshes a project and everything in it, e.g. after its
// visibility changed.
func (s *Service) ReindexProject(projectID string) {
	if s == nil || s.fallback == nil {
		return
	}
	s.background("reindex project", projectID, func() error {
		projects, posts, tasks, err := s.fallback.LoadProjectRecords(context.Background(), projectID)
		if err != nil {
			return err
		}
		return s.push(projects, posts, tasks)
	})
}

// RemoveProject must run before the project rows are deleted: it reads the
// ids to drop from Postgres synchronously and deletes them in the background.
func (s *Service) RemoveProject(ctx context.Context, projectID string) {
	if !s.indexReady() || s.fallback == nil {
		return
	}
	_, posts, tasks, err := s.fallback.LoadProjectRecords(ctx, projectID)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", projectID).Msg("load project records for removal")
		return
	}
	s.background("remove project", projectID, func() error {
		if err := s.index.Delete(ResultProject, projectID); err != nil {
			return err
		}
		postIDs := make([]string, len(posts))
		for i, post := range posts {
			postIDs[i] = post.ID
		}
		if err := s.index.Delete(ResultPost, postIDs...); err != nil {
			return err
		}
		taskIDs := make([]string, len(tasks))
		for i, task := range tasks {
			taskIDs[i] = task.ID
		}
		return s.index.Delete(ResultTask, taskIDs...)
	})
}

func (s *Service) push(projects []ProjectRecord, posts []PostRecord, tasks []TaskRecord) error {
	if err := s.index.IndexProjects(projects); err != nil {
		return fmt.Errorf("index projects: %w", err)
	}
	if err := s.index.IndexPosts(posts); err != nil {
		return fmt.Errorf("index posts: %w", err)
	}
	if err := s.index.IndexTasks(tasks); err != nil {
		return fmt.Errorf("index tasks: %w", err)
	}
	return nil
}

// ReindexAllFromPG pushes every searchable entity into Meilisearch. Called
// during bootstrap when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.indexReady() || s.fallback == nil {
		return
	}
	projects, posts, tasks, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.push(projects, posts, tasks); err != nil {
		s.logger.Error().Err(err).Msg("reindex failed")
		return
	}
	s.logger.Info().Int("projects", len(projects)).Int("posts", len(posts)).Int("tasks", len(tasks)).Msg("search reindexed")
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
