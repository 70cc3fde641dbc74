package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
	"sharesync/api/internal/logging"
)

const (
	idxProjects = "sharesync_projects"
	idxPosts    = "sharesync_posts"
	idxTasks    = "sharesync_tasks"
)

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili searches and indexes through Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	logger  zerolog.Logger
}

// NewMeili creates a Meilisearch client and configures indexes. A failed
// initial health check leaves the client unhealthy; the health loop keeps
// probing and reconfigures on recovery.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		logger: logging.For("search"),
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{uid: idxProjects, filterable: []string{"projectId", "projectVisibility", "status"}, searchable: []string{"name", "description", "category"}},
		{uid: idxPosts, filterable: []string{"projectId", "projectVisibility", "kind"}, searchable: []string{"title", "body"}},
		{uid: idxTasks, filterable: []string{"projectId", "projectVisibility", "status"}, searchable: []string{"title", "description"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m != nil && m.healthy.Load()
}

// Search queries the selected indexes and merges their hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.Healthy() {
		return nil, 0, errUnhealthy
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	filter := accessFilter(q.ProjectIDs)
	var queries []*meili.SearchRequest
	for _, target := range targets(q.FilterType) {
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			Filter:                filter,
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

type target struct {
	uid  string
	rtyp ResultType
}

func targets(filter ResultType) []target {
	all := []target{{idxProjects, ResultProject}, {idxPosts, ResultPost}, {idxTasks, ResultTask}}
	if filter == "" {
		return all
	}
	for _, t := range all {
		if t.rtyp == filter {
			return []target{t}
		}
	}
	return nil
}

// accessFilter limits hits to the caller's projects plus public ones.
func accessFilter(projectIDs []string) string {
	public := `projectVisibility = "public"`
	if len(projectIDs) == 0 {
		return public
	}
	quoted := make([]string, len(projectIDs))
	for i, id := range projectIDs {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("projectId IN [%s] OR %s", strings.Join(quoted, ", "), public)
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxProjects:
		return ResultProject
	case idxPosts:
		return ResultPost
	case idxTasks:
		return ResultTask
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.ProjectID = decodeString(hit, "projectId")

	switch rtyp {
	case ResultProject:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	case ResultPost:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	case ResultTask:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	r.Snippet = truncate(r.Snippet, 240)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "…"
}

func (m *Meili) IndexProjects(records []ProjectRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxProjects).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexPosts(records []PostRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPosts).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexTasks(records []TaskRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTasks).AddDocuments(records, nil)
	return err
}

// Delete removes documents of one kind by id.
func (m *Meili) Delete(kind ResultType, ids ...string) error {
	var uid string
	for _, t := range targets(kind) {
		uid = t.uid
	}
	if uid == "" || kind == "" {
		return fmt.Errorf("unknown search kind %q", kind)
	}
	for _, id := range ids {
		if _, err := m.client.Index(uid).DeleteDocument(id, nil); err != nil {
			return err
		}
	}
	return nil
}
