package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	meili "github.com/meilisearch/meilisearch-go"
)

type fakeIndex struct {
	healthy   bool
	searchErr error
	results   []Result
	posts     []PostRecord
	projects  []ProjectRecord
	deleted   map[ResultType][]string
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(q Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeIndex) IndexProjects(records []ProjectRecord) error {
	f.projects = append(f.projects, records...)
	return nil
}

func (f *fakeIndex) IndexPosts(records []PostRecord) error {
	f.posts = append(f.posts, records...)
	return nil
}

func (f *fakeIndex) IndexTasks(records []TaskRecord) error { return nil }

func (f *fakeIndex) Delete(kind ResultType, ids ...string) error {
	if f.deleted == nil {
		f.deleted = map[ResultType][]string{}
	}
	f.deleted[kind] = append(f.deleted[kind], ids...)
	return nil
}

type fakeFallback struct {
	calls   int
	results []Result
	err     error
	posts   []PostRecord
	tasks   []TaskRecord
}

func (f *fakeFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), f.err
}

func (f *fakeFallback) LoadProjectRecords(ctx context.Context, projectID string) ([]ProjectRecord, []PostRecord, []TaskRecord, error) {
	return []ProjectRecord{{ID: projectID, ProjectID: projectID}}, f.posts, f.tasks, nil
}

func (f *fakeFallback) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []PostRecord, []TaskRecord, error) {
	return nil, f.posts, f.tasks, nil
}

func syncService(index Index, fallback Fallback) *Service {
	svc := NewService(index, fallback)
	svc.async = func(fn func()) { fn() }
	return svc
}

func TestSearchPrefersHealthyIndex(t *testing.T) {
	index := &fakeIndex{healthy: true, results: []Result{{Type: ResultPost, ID: "pst_1"}}}
	fallback := &fakeFallback{}
	svc := syncService(index, fallback)

	resp := svc.Search(context.Background(), Query{Text: "launch"})
	if resp.Total != 1 || resp.Results[0].ID != "pst_1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback should not be used while the index is healthy")
	}
}

func TestSearchFallsBackOnIndexError(t *testing.T) {
	index := &fakeIndex{healthy: true, searchErr: errors.New("boom")}
	fallback := &fakeFallback{results: []Result{{Type: ResultTask, ID: "tsk_1"}}}
	svc := syncService(index, fallback)

	resp := svc.Search(context.Background(), Query{Text: "launch"})
	if fallback.calls != 1 || resp.Results[0].ID != "tsk_1" {
		t.Fatalf("expected fallback results, got %+v", resp)
	}
}

func TestSearchEmptyQueryReturnsEmptyResults(t *testing.T) {
	svc := syncService(nil, &fakeFallback{})
	resp := svc.Search(context.Background(), Query{})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", resp.Results)
	}
}

func TestSearchFallbackErrorYieldsEmptyResults(t *testing.T) {
	svc := syncService(&fakeIndex{healthy: false}, &fakeFallback{err: errors.New("db down")})
	resp := svc.Search(context.Background(), Query{Text: "x"})
	if resp.Results == nil || resp.Total != 0 {
		t.Fatalf("expected empty result on failure, got %+v", resp)
	}
}

func TestIndexingSkippedWhenUnhealthy(t *testing.T) {
	index := &fakeIndex{healthy: false}
	svc := syncService(index, &fakeFallback{})
	svc.IndexPost(PostRecord{ID: "pst_1"})
	if len(index.posts) != 0 {
		t.Fatal("expected no indexing while unhealthy")
	}
}

func TestIndexProjectSetsProjectID(t *testing.T) {
	index := &fakeIndex{healthy: true}
	svc := syncService(index, &fakeFallback{})
	svc.IndexProject(ProjectRecord{ID: "prj_1", Name: "Launch", ProjectVisibility: "public"})
	if len(index.projects) != 1 || index.projects[0].ProjectID != "prj_1" {
		t.Fatalf("unexpected indexed projects %+v", index.projects)
	}
}

func TestRemoveProjectDropsChildren(t *testing.T) {
	index := &fakeIndex{healthy: true}
	fallback := &fakeFallback{
		posts: []PostRecord{{ID: "pst_1"}, {ID: "pst_2"}},
		tasks: []TaskRecord{{ID: "tsk_1"}},
	}
	svc := syncService(index, fallback)

	svc.RemoveProject(context.Background(), "prj_1")

	want := map[ResultType][]string{
		ResultProject: {"prj_1"},
		ResultPost:    {"pst_1", "pst_2"},
		ResultTask:    {"tsk_1"},
	}
	if diff := cmp.Diff(want, index.deleted); diff != "" {
		t.Fatalf("deleted ids mismatch (-want +got):\n%s", diff)
	}
}

func TestAccessFilter(t *testing.T) {
	if got := accessFilter(nil); got != `projectVisibility = "public"` {
		t.Fatalf("unexpected filter %q", got)
	}
	got := accessFilter([]string{"prj_1", "prj_2"})
	want := `projectId IN ["prj_1", "prj_2"] OR projectVisibility = "public"`
	if got != want {
		t.Fatalf("accessFilter() = %q, want %q", got, want)
	}
}

func TestTargets(t *testing.T) {
	if len(targets("")) != 3 {
		t.Fatal("expected all indexes for empty filter")
	}
	if got := targets(ResultTask); len(got) != 1 || got[0].uid != idxTasks {
		t.Fatalf("unexpected targets %+v", got)
	}
	if got := targets("bogus"); got != nil {
		t.Fatalf("expected no targets for unknown type, got %+v", got)
	}
}

func TestHitToResultPrefersHighlight(t *testing.T) {
	raw := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	hit := meili.Hit{
		"id":         raw("pst_1"),
		"projectId":  raw("prj_1"),
		"title":      raw("Kickoff"),
		"body":       raw("We launch on Monday"),
		"_formatted": raw(map[string]string{"body": "We <mark>launch</mark> on Monday"}),
	}
	got := hitToResult(hit, ResultPost)
	want := Result{Type: ResultPost, ID: "pst_1", ProjectID: "prj_1", Title: "Kickoff", Snippet: "We <mark>launch</mark> on Monday"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hitToResult mismatch (-want +got):\n%s", diff)
	}
}

func TestValidType(t *testing.T) {
	for _, ok := range []string{"", "project", "post", "task"} {
		if !ValidType(ok) {
			t.Errorf("expected %q to be valid", ok)
		}
	}
	if ValidType("document") {
		t.Error("expected document to be invalid")
	}
}

