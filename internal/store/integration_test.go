package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"sharesync/api/internal/util"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("SHARESYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SHARESYNC_TEST_DATABASE_URL not set")
	}
	return url
}

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func createTestUser(t *testing.T, s *PostgresStore, name string) User {
	t.Helper()
	id := util.NewID("usr")
	user := User{
		ID:              id,
		Username:        name + "_" + id[len(id)-6:],
		Email:           name + "_" + id[len(id)-6:] + "@example.com",
		DisplayName:     name,
		PasswordHash:    "x",
		IsEmailVerified: true,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestIntegrationDuplicateEmailIsUniqueViolation(t *testing.T) {
	s := openTestStore(t)
	user := createTestUser(t, s, "dup")

	clone := user
	clone.ID = util.NewID("usr")
	clone.Username = user.Username + "x"
	err := s.CreateUser(context.Background(), clone)
	constraint, ok := UniqueViolation(err)
	if !ok {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if constraint != "users_email_key" {
		t.Fatalf("unexpected constraint %q", constraint)
	}
}

func TestIntegrationProjectLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "owner")
	member := createTestUser(t, s, "member")

	project := Project{ID: util.NewID("prj"), Name: "Launch", Status: "active", Visibility: "private", OwnerID: owner.ID}
	if err := s.InsertProject(ctx, project); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	role, err := s.GetMemberRole(ctx, project.ID, owner.ID)
	if err != nil || role != "owner" {
		t.Fatalf("expected owner role, got %q err=%v", role, err)
	}

	added, err := s.AddMember(ctx, project.ID, member.ID, "member")
	if err != nil || !added {
		t.Fatalf("expected member added, got added=%v err=%v", added, err)
	}
	added, err = s.AddMember(ctx, project.ID, member.ID, "member")
	if err != nil || added {
		t.Fatalf("expected duplicate add to be a no-op, got added=%v err=%v", added, err)
	}

	if err := s.TransferOwnership(ctx, project.ID, owner.ID, member.ID); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	role, _ = s.GetMemberRole(ctx, project.ID, owner.ID)
	if role != "admin" {
		t.Fatalf("expected previous owner demoted to admin, got %q", role)
	}

	if err := s.RemoveMember(ctx, project.ID, member.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected owner removal to be refused, got %v", err)
	}

	if err := s.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
}

func TestIntegrationTogglePostLikeFirstOnlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	author := createTestUser(t, s, "author")
	fan := createTestUser(t, s, "fan")

	project := Project{ID: util.NewID("prj"), Name: "Likes", Status: "active", Visibility: "public", OwnerID: author.ID}
	if err := s.InsertProject(ctx, project); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()
	post := Post{ID: util.NewID("pst"), ProjectID: project.ID, AuthorID: author.ID, Kind: "post", Body: "hello"}
	if err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert post: %v", err)
	}

	steps := []LikeResult{
		{Liked: true, First: true, Likes: 1},
		{Liked: false, First: false, Likes: 0},
		{Liked: true, First: false, Likes: 1},
	}
	for i, want := range steps {
		got, err := s.TogglePostLike(ctx, post.ID, fan.ID)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("toggle %d: got %+v want %+v", i, got, want)
		}
	}
}

func TestIntegrationAwardPointsAndNotifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "scorer")

	total, err := s.AwardPoints(ctx, PointEvent{UserID: user.ID, Reason: "post.created", Points: 10})
	if err != nil {
		t.Fatalf("award points: %v", err)
	}
	if total != 10 {
		t.Fatalf("expected total 10, got %d", total)
	}

	items := []Notification{
		{ID: util.NewID("ntf"), UserID: user.ID, ActorID: user.ID, Type: "user.followed", Message: "a", CreatedAt: time.Now().UTC()},
		{ID: util.NewID("ntf"), UserID: user.ID, ActorID: user.ID, Type: "user.followed", Message: "b", CreatedAt: time.Now().UTC()},
	}
	if err := s.InsertNotifications(ctx, items); err != nil {
		t.Fatalf("insert notifications: %v", err)
	}
	count, err := s.UnreadNotificationCount(ctx, user.ID)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 unread, got %d err=%v", count, err)
	}
	updated, err := s.MarkAllNotificationsRead(ctx, user.ID)
	if err != nil || updated != 2 {
		t.Fatalf("expected 2 marked read, got %d err=%v", updated, err)
	}
}

func TestIntegrationListTasksOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "planner")

	project := Project{ID: util.NewID("prj"), Name: "Board", Status: "active", Visibility: "private", OwnerID: owner.ID}
	if err := s.InsertProject(ctx, project); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()

	day := func(n int) *time.Time {
		due := time.Date(2025, 3, n, 0, 0, 0, 0, time.UTC)
		return &due
	}
	seed := []struct {
		title  string
		status string
		due    *time.Time
	}{
		{"shipped", "done", nil},
		{"later", "todo", day(20)},
		{"someday", "todo", nil},
		{"doing", "in_progress", day(1)},
		{"soon", "todo", day(5)},
	}
	for _, item := range seed {
		task := Task{
			ID:        util.NewID("tsk"),
			ProjectID: project.ID,
			Title:     item.title,
			Status:    item.status,
			Priority:  "medium",
			DueDate:   item.due,
			CreatedBy: owner.ID,
		}
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("insert task %s: %v", item.title, err)
		}
	}

	tasks, err := s.ListTasks(ctx, project.ID, "", "")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	got := make([]string, 0, len(tasks))
	for _, task := range tasks {
		got = append(got, task.Title)
	}
	want := []string{"soon", "later", "someday", "doing", "shipped"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("task order mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegrationSearchUsersMatchesLiterally(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	literal := createTestUser(t, s, "under_score")
	other := createTestUser(t, s, "underxscore")

	users, err := s.SearchUsers(ctx, "r_s", 50)
	if err != nil {
		t.Fatalf("search users: %v", err)
	}
	found := map[string]bool{}
	for _, user := range users {
		found[user.ID] = true
	}
	if !found[literal.ID] {
		t.Fatalf("expected %s in results", literal.Username)
	}
	if found[other.ID] {
		t.Fatalf("underscore acted as a wildcard and matched %s", other.Username)
	}
}

func TestIntegrationTokensConsumeOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "rotator")
	expires := time.Now().Add(time.Hour)

	if err := s.SaveRefreshSession(ctx, "rft-"+user.ID, user.ID, expires); err != nil {
		t.Fatalf("save refresh session: %v", err)
	}
	if got, err := s.ConsumeRefreshSession(ctx, "rft-"+user.ID); err != nil || got != user.ID {
		t.Fatalf("first consume: got %q err=%v", got, err)
	}
	if _, err := s.ConsumeRefreshSession(ctx, "rft-"+user.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected rotated refresh token to be spent, got %v", err)
	}

	if err := s.CreatePasswordReset(ctx, user.ID, "rst-"+user.ID, expires); err != nil {
		t.Fatalf("create password reset: %v", err)
	}
	if got, err := s.ConsumePasswordReset(ctx, "rst-"+user.ID); err != nil || got != user.ID {
		t.Fatalf("first reset consume: got %q err=%v", got, err)
	}
	if _, err := s.ConsumePasswordReset(ctx, "rst-"+user.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected used reset token to be rejected, got %v", err)
	}
}
