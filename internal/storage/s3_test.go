package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewWithoutEndpointDisablesStorage(t *testing.T) {
	store, err := New(Config{Bucket: "sharesync"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if store.Configured() {
		t.Fatal("expected storage to be disabled without an endpoint")
	}
	if err := store.Put(context.Background(), "k", strings.NewReader("x"), 1, "text/plain"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := store.PresignGet(context.Background(), "k", time.Minute, ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPresignGetIsOffline(t *testing.T) {
	store, err := New(Config{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    "sharesync",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	signed, err := store.PresignGet(context.Background(), "projects/prj_1/fil_1/report.pdf", 15*time.Minute, "report.pdf")
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	for _, want := range []string{"http://localhost:9000/sharesync/projects/prj_1/fil_1/report.pdf", "X-Amz-Expires=900", "response-content-disposition"} {
		if !strings.Contains(signed, want) {
			t.Errorf("presigned url %q missing %q", signed, want)
		}
	}
}

func TestObjectKeys(t *testing.T) {
	if got := ProjectFileKey("prj_1", "fil_2", "Q3 plan.pdf"); got != "projects/prj_1/fil_2/Q3_plan.pdf" {
		t.Fatalf("unexpected project key %q", got)
	}
	if got := AvatarKey("usr_1", "fil_9"); got != "avatars/usr_1/fil_9" {
		t.Fatalf("unexpected avatar key %q", got)
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.txt`: "a.txt",
		"  ":                "file",
		"...":               "file",
		"résumé.doc":        "rsum.doc",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}
