package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultPost    ResultType = "post"
	ResultTask    ResultType = "task"
)

// ValidType reports whether t names a searchable entity ("" means all).
func ValidType(t string) bool {
	switch ResultType(t) {
	case "", ResultProject, ResultPost, ResultTask:
		return true
	}
	return false
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
}

// Query describes a search request. Hits are limited to ProjectIDs plus
// public projects.
type Query struct {
	Text       string
	FilterType ResultType
	ProjectIDs []string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	Status            string `json:"status"`
	ProjectID         string `json:"projectId"`
	ProjectVisibility string `json:"projectVisibility"`
}

// PostRecord is the data we index for a post or announcement.
type PostRecord struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Body              string `json:"body"`
	Kind              string `json:"kind"`
	ProjectID         string `json:"projectId"`
	ProjectVisibility string `json:"projectVisibility"`
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	ProjectID         string `json:"projectId"`
	ProjectVisibility string `json:"projectVisibility"`
}
