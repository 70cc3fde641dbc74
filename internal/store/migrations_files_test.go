package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

const migrationsDir = "../../db/migrations"

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations dir: %s", entry.Name())
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := MigrationFiles(migrationsDir)
	if err != nil {
		t.Fatalf("MigrationFiles() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected migration files")
	}
	for i, file := range files {
		if !strings.HasSuffix(file, ".up.sql") {
			t.Fatalf("expected only up migrations, got %s", file)
		}
		if i > 0 && filepath.Base(files[i-1]) >= filepath.Base(file) {
			t.Fatalf("migrations out of order: %s before %s", files[i-1], file)
		}
	}
}

func TestMigrationsCreateCoreTables(t *testing.T) {
	files, err := MigrationFiles(migrationsDir)
	if err != nil {
		t.Fatalf("MigrationFiles() error = %v", err)
	}
	var all strings.Builder
	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		all.Write(contents)
	}
	for _, table := range []string{"users", "projects", "project_members", "posts", "post_likes", "comments", "tasks", "subtasks", "task_comments", "notifications", "activity", "point_events", "follows", "files", "refresh_sessions"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("expected a migration to create table %s", table)
		}
	}
}
