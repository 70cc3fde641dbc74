package export

import (
	"context"
	"fmt"
	"time"

	"sharesync/api/internal/store"
)

// DataStore defines the reads a report needs
type DataStore interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]store.Member, error)
	ListTasks(ctx context.Context, projectID, status, assigneeID string) ([]store.Task, error)
	ListPosts(ctx context.Context, projectID, viewerID, kind string, limit, offset int) ([]store.Post, error)
	ProjectLeaderboard(ctx context.Context, projectID string, limit int) ([]store.LeaderboardEntry, error)
}

// PDFRenderer turns a rendered HTML document into PDF bytes.
type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

// Service builds project reports
type Service struct {
	store  DataStore
	render PDFRenderer
	now    func() time.Time
}

// NewService creates a report service that prints PDFs with headless Chrome
func NewService(store DataStore) *Service {
	return &Service{store: store, render: chromePDF, now: func() time.Time { return time.Now().UTC() }}
}

// WithRenderer swaps the PDF backend.
func (s *Service) WithRenderer(render PDFRenderer) *Service {
	s.render = render
	return s
}

// Export generates a report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format != FormatHTML && req.Format != FormatPDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	data, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := sanitizeFilename(data.Project.Name)
	if req.Format == FormatHTML {
		return &Result{Data: []byte(html), Filename: filename + ".html", MimeType: "text/html; charset=utf-8"}, nil
	}
	pdf, err := s.render(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{Data: pdf, Filename: filename + ".pdf", MimeType: "application/pdf"}, nil
}

func (s *Service) load(ctx context.Context, req Request) (TemplateData, error) {
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("get project: %w", err)
	}
	members, err := s.store.ListMembers(ctx, req.ProjectID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list members: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, req.ProjectID, "", "")
	if err != nil {
		return TemplateData{}, fmt.Errorf("list tasks: %w", err)
	}
	posts, err := s.store.ListPosts(ctx, req.ProjectID, req.ViewerID, "", RecentPostLimit, 0)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list posts: %w", err)
	}
	leaders, err := s.store.ProjectLeaderboard(ctx, req.ProjectID, LeaderboardLimit)
	if err != nil {
		return TemplateData{}, fmt.Errorf("project leaderboard: %w", err)
	}

	return TemplateData{
		Project:     project,
		GeneratedAt: s.now(),
		Members:     members,
		TaskGroups:  groupTasks(tasks),
		Posts:       posts,
		Leaderboard: leaders,
	}, nil
}

// groupTasks keeps the store's ordering and always returns all three groups.
func groupTasks(tasks []store.Task) []TaskGroup {
	groups := []TaskGroup{
		{Status: "todo", Label: "To do"},
		{Status: "in_progress", Label: "In progress"},
		{Status: "done", Label: "Done"},
	}
	for _, task := range tasks {
		for i := range groups {
			if groups[i].Status == task.Status {
				groups[i].Tasks = append(groups[i].Tasks, task)
				break
			}
		}
	}
	return groups
}
