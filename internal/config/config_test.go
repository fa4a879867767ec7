package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  default_provider: openai\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("default provider: got %q want %q", cfg.LLM.DefaultProvider, "openai")
	}
	if got := cfg.Scrape.Languages; len(got) != 1 || got[0] != "en" {
		t.Fatalf("languages: got %v want [en]", got)
	}
	if cfg.Evaluation.Concurrency != 4 {
		t.Fatalf("concurrency: got %d want 4", cfg.Evaluation.Concurrency)
	}
	if cfg.Evaluation.Mode != "closed-book" {
		t.Fatalf("mode: got %q want %q", cfg.Evaluation.Mode, "closed-book")
	}
	if cfg.Evaluation.MaxAttempts != 3 {
		t.Fatalf("max attempts: got %d want 3", cfg.Evaluation.MaxAttempts)
	}
}

func TestLoad_Full(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
llm:
  default_provider: claude
  providers:
    claude:
      api_key: test-key
      model: claude-sonnet-4-5
scrape:
  languages: [en, ru, de]
  request_delay: 250ms
evaluation:
  mode: rag
  top_k: 10
  timeout: 30s
storage:
  type: sqlite
  path: /tmp/wikifacts.db
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Scrape.Languages) != 3 {
		t.Fatalf("languages: got %v", cfg.Scrape.Languages)
	}
	if cfg.Scrape.RequestDelay != 250*time.Millisecond {
		t.Fatalf("request delay: got %v", cfg.Scrape.RequestDelay)
	}
	if cfg.Evaluation.Mode != "rag" {
		t.Fatalf("mode: got %q", cfg.Evaluation.Mode)
	}
	if cfg.Evaluation.TopK != 10 {
		t.Fatalf("top_k: got %d", cfg.Evaluation.TopK)
	}
	if cfg.LLM.Providers["claude"].Model != "claude-sonnet-4-5" {
		t.Fatalf("model: got %q", cfg.LLM.Providers["claude"].Model)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  providers:\n    openai:\n      api_key: file-key\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["openai"].APIKey; got != "env-key" {
		t.Fatalf("api key: got %q want %q", got, "env-key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("Load: expected error for missing file")
	}
}
