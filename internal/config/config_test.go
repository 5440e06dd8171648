package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetAPIKeyPrefixOverride(t *testing.T) {
	old := os.Getenv("LLM_API_KEY")
	defer os.Setenv("LLM_API_KEY", old)

	os.Setenv("LLM_API_KEY", "override-key")

	key, err := getAPIKey("claude", "LLM")
	if err != nil {
		t.Fatalf("getAPIKey failed: %v", err)
	}
	if key != "override-key" {
		t.Errorf("expected override-key, got %s", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	oldLLM := os.Getenv("LLM_API_KEY")
	oldOpenAI := os.Getenv("OPENAI_API_KEY")
	defer func() {
		os.Setenv("LLM_API_KEY", oldLLM)
		os.Setenv("OPENAI_API_KEY", oldOpenAI)
	}()

	os.Setenv("LLM_API_KEY", "")
	os.Setenv("OPENAI_API_KEY", "")

	if _, err := getAPIKey("openai", "LLM"); err == nil {
		t.Error("expected error for missing OPENAI_API_KEY")
	}
}

func TestGetAPIKeyOllama(t *testing.T) {
	old := os.Getenv("LLM_API_KEY")
	defer os.Setenv("LLM_API_KEY", old)
	os.Setenv("LLM_API_KEY", "")

	key, err := getAPIKey("ollama", "LLM")
	if err != nil {
		t.Fatalf("getAPIKey failed: %v", err)
	}
	if key != "ollama" {
		t.Errorf("expected ollama placeholder key, got %s", key)
	}
}

func TestLoadStoreConfigRequired(t *testing.T) {
	oldURL := os.Getenv("STORE_URL")
	oldKey := os.Getenv("STORE_ANON_KEY")
	defer func() {
		os.Setenv("STORE_URL", oldURL)
		os.Setenv("STORE_ANON_KEY", oldKey)
	}()

	os.Setenv("STORE_URL", "")
	os.Setenv("STORE_ANON_KEY", "")

	if _, err := loadStoreConfig(); err == nil {
		t.Error("expected error when STORE_URL is missing")
	}

	os.Setenv("STORE_URL", "https://store.example.com")
	if _, err := loadStoreConfig(); err == nil {
		t.Error("expected error when STORE_ANON_KEY is missing")
	}

	os.Setenv("STORE_ANON_KEY", "anon")
	cfg, err := loadStoreConfig()
	if err != nil {
		t.Fatalf("loadStoreConfig failed: %v", err)
	}
	if cfg.URL != "https://store.example.com" {
		t.Errorf("unexpected url: %s", cfg.URL)
	}
}

func TestDefaultCollectConfig(t *testing.T) {
	cfg := defaultCollectConfig()

	if cfg.LocationInterval != 2*time.Hour {
		t.Errorf("expected 2h location interval, got %v", cfg.LocationInterval)
	}
	if cfg.PhotoInterval != 30*time.Minute {
		t.Errorf("expected 30m photo interval, got %v", cfg.PhotoInterval)
	}
	if cfg.CalendarInterval != 30*time.Minute {
		t.Errorf("expected 30m calendar interval, got %v", cfg.CalendarInterval)
	}
	if cfg.PhotoMaxPerPoll != 50 {
		t.Errorf("expected 50 photos per poll, got %d", cfg.PhotoMaxPerPoll)
	}
}

func TestApplyTuningFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daylog.yml")

	yml := `
collect:
  location_interval: 1h
  photo_max_per_poll: 25
  fine_threshold_m: 50
digest:
  schedule: "30 8 * * *"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &Config{Collect: defaultCollectConfig(), Digest: DigestConfig{Schedule: "0 21 * * *"}}
	if err := applyTuningFile(cfg, path); err != nil {
		t.Fatalf("applyTuningFile failed: %v", err)
	}

	if cfg.Collect.LocationInterval != time.Hour {
		t.Errorf("location interval not applied: %v", cfg.Collect.LocationInterval)
	}
	if cfg.Collect.PhotoMaxPerPoll != 25 {
		t.Errorf("photo cap not applied: %d", cfg.Collect.PhotoMaxPerPoll)
	}
	if cfg.Collect.FineThresholdM != 50 {
		t.Errorf("fine threshold not applied: %v", cfg.Collect.FineThresholdM)
	}
	// untouched fields keep defaults
	if cfg.Collect.PhotoInterval != 30*time.Minute {
		t.Errorf("photo interval should keep default, got %v", cfg.Collect.PhotoInterval)
	}
	if cfg.Digest.Schedule != "30 8 * * *" {
		t.Errorf("digest schedule not applied: %s", cfg.Digest.Schedule)
	}
}

func TestApplyTuningFileRejectsBadInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daylog.yml")

	if err := os.WriteFile(path, []byte("collect:\n  photo_interval: nope\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &Config{Collect: defaultCollectConfig()}
	if err := applyTuningFile(cfg, path); err == nil {
		t.Error("expected error for invalid interval")
	}
}
