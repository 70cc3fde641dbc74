package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHARESYNC_CONFIG", "")
	t.Setenv("API_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("expected access ttl 15m, got %v", cfg.AccessTTL)
	}
	if cfg.MaxUploadBytes != 25<<20 {
		t.Fatalf("unexpected max upload bytes %d", cfg.MaxUploadBytes)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sharesync.yaml")
	contents := "addr: \":9000\"\nsmtp_host: smtp.example.com\nsmtp_from: noreply@example.com\naccess_ttl_seconds: 60\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHARESYNC_CONFIG", path)
	t.Setenv("API_ADDR", ":9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("expected env to override file addr, got %q", cfg.Addr)
	}
	if cfg.AccessTTL != time.Minute {
		t.Fatalf("expected access ttl from file, got %v", cfg.AccessTTL)
	}
	if !cfg.SMTPConfigured() {
		t.Fatal("expected SMTP to be configured from file")
	}
}

func TestEmptyBackendVariableDisablesBackend(t *testing.T) {
	t.Setenv("SHARESYNC_CONFIG", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("MEILI_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RedisURL != "" || cfg.MeiliURL != "" {
		t.Fatalf("expected backends disabled, got redis=%q meili=%q", cfg.RedisURL, cfg.MeiliURL)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("addr: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHARESYNC_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail for malformed yaml")
	}
}
