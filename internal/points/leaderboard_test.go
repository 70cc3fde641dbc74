package points

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func setupBoard(t *testing.T) (*Board, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBoard(client), s
}

func TestPointTable(t *testing.T) {
	cases := map[string]int{
		ProjectCreated: 25,
		PostCreated:    10,
		Announcement:   10,
		PostCommented:  5,
		PostLiked:      2,
		TaskCreated:    5,
		TaskCompleted:  20,
		"unknown":      0,
	}
	for reason, want := range cases {
		if got := For(reason); got != want {
			t.Errorf("For(%q) = %d, want %d", reason, got, want)
		}
	}
}

func TestSetAndTop(t *testing.T) {
	board, _ := setupBoard(t)
	ctx := context.Background()

	for _, step := range []struct {
		user  string
		total int
	}{{"usr_a", 10}, {"usr_b", 25}, {"usr_a", 30}, {"usr_c", 2}} {
		if err := board.Set(ctx, step.user, step.total); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	got, err := board.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	want := []Score{{UserID: "usr_a", Points: 30}, {UserID: "usr_b", Points: 25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Top mismatch (-want +got):\n%s", diff)
	}
}

func TestRebuildReplacesSet(t *testing.T) {
	board, s := setupBoard(t)
	ctx := context.Background()

	if err := board.Set(ctx, "usr_stale", 99); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := board.Rebuild(ctx, []Score{{UserID: "usr_x", Points: 7}, {UserID: "usr_y", Points: 3}}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	size, err := board.Size(ctx)
	if err != nil || size != 2 {
		t.Fatalf("expected 2 members, got %d err=%v", size, err)
	}
	if score, _ := s.ZScore(globalKey, "usr_x"); score != 7 {
		t.Fatalf("expected usr_x score 7, got %v", score)
	}
	members, err := s.ZMembers(globalKey)
	if err != nil {
		t.Fatalf("ZMembers: %v", err)
	}
	sort.Strings(members)
	if diff := cmp.Diff([]string{"usr_x", "usr_y"}, members); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestTopIncludesTiesAtBoundary(t *testing.T) {
	board, _ := setupBoard(t)
	ctx := context.Background()

	for user, total := range map[string]int{"usr_a": 30, "usr_b": 10, "usr_c": 10, "usr_d": 10, "usr_e": 5} {
		if err := board.Set(ctx, user, total); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	got, err := board.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, score := range got {
		ids = append(ids, score.UserID)
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"usr_a", "usr_b", "usr_c", "usr_d"}, ids); diff != "" {
		t.Fatalf("Top mismatch (-want +got):\n%s", diff)
	}
}

func TestTopBelowLimitSkipsTieLookup(t *testing.T) {
	board, _ := setupBoard(t)
	ctx := context.Background()

	_ = board.Set(ctx, "usr_a", 4)
	got, err := board.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if diff := cmp.Diff([]Score{{UserID: "usr_a", Points: 4}}, got); diff != "" {
		t.Fatalf("Top mismatch (-want +got):\n%s", diff)
	}
}

func TestRebuildWithNoScoresClearsSet(t *testing.T) {
	board, _ := setupBoard(t)
	ctx := context.Background()

	_ = board.Set(ctx, "usr_a", 1)
	if err := board.Rebuild(ctx, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if size, _ := board.Size(ctx); size != 0 {
		t.Fatalf("expected empty set, got %d", size)
	}
}

func TestNilBoardDisabled(t *testing.T) {
	var board *Board
	if board.Enabled() {
		t.Fatal("nil board must be disabled")
	}
	if NewBoard(nil).Enabled() {
		t.Fatal("board without client must be disabled")
	}
}
