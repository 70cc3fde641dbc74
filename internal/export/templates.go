package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"sharesync/api/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"due": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"assignee": func(task store.Task) string {
		if task.AssigneeName != "" {
			return task.AssigneeName
		}
		return "Unassigned"
	},
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData holds everything the report template renders
type TemplateData struct {
	Project     store.Project
	GeneratedAt time.Time
	Members     []store.Member
	TaskGroups  []TaskGroup
	Posts       []store.Post
	Leaderboard []store.LeaderboardEntry
}

// TaskGroup is one status column of the task section
type TaskGroup struct {
	Status string
	Label  string
	Tasks  []store.Task
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
