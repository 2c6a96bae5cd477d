package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_COUNT", "JOB_TTL", "CORS_ORIGINS", "VERIFY_AFTER_SYNC", "LAYOUT_DIR"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %s", cfg.JobTTL)
	}
	if !cfg.VerifyAfterSync {
		t.Error("expected verification on by default")
	}
	if diff := cmp.Diff([]string{"*"}, cfg.CORSOrigins); diff != "" {
		t.Errorf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.LayoutDir != "./layouts" {
		t.Errorf("expected ./layouts, got %q", cfg.LayoutDir)
	}
}

func TestLoad_OverridesAndClamps(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("MAX_QUEUE_SIZE", "abc")
	t.Setenv("JOB_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("VERIFY_AFTER_SYNC", "false")
	t.Setenv("BOILERPLATE_TEXT", "Generated below.")
	cfg := Load()

	if cfg.WorkerCount != 2 {
		t.Errorf("expected clamped worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("expected fallback queue size 100, got %d", cfg.MaxQueueSize)
	}
	if cfg.JobTTL != 15*time.Minute {
		t.Errorf("expected 15m TTL, got %s", cfg.JobTTL)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.CORSOrigins); diff != "" {
		t.Errorf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.VerifyAfterSync {
		t.Error("expected verification off")
	}
	if cfg.BoilerplateText != "Generated below." {
		t.Errorf("unexpected boilerplate %q", cfg.BoilerplateText)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{DocsyncAPIKey: "a"}).Validate(); err == nil {
		t.Error("expected error without workstore key")
	}
	if err := (Config{WorkstoreAPIKey: "b"}).Validate(); err == nil {
		t.Error("expected error without api key")
	}
	if err := (Config{WorkstoreAPIKey: "b", DocsyncAPIKey: "a"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
