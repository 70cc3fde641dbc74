package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("prj")
	if !strings.HasPrefix(id, "prj_") {
		t.Fatalf("expected prj_ prefix, got %q", id)
	}
	if len(id) != len("prj_")+32 {
		t.Fatalf("unexpected id length %d for %q", len(id), id)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewID("")
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
