package api

import (
	"context"
	"errors"
	"testing"

	"github.com/wikifactslab/wikifacts/internal/config"
)

func TestScheduler_RunRefresh(t *testing.T) {
	cfg := config.Default()
	cfg.Scrape.Languages = []string{"en", "de"}

	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	counts := map[string]int{"en": 7, "de": 3}
	s.refresh = func(ctx context.Context, lang string) (int, error) {
		return counts[lang], nil
	}
	s.runRefresh()

	st := s.Status()
	if st.Runs != 1 {
		t.Fatalf("Runs: got %d want 1", st.Runs)
	}
	if st.LastFacts != 10 {
		t.Fatalf("LastFacts: got %d want 10", st.LastFacts)
	}
	if st.LastError != "" {
		t.Fatalf("LastError: got %q want empty", st.LastError)
	}
	if st.LastRun.IsZero() {
		t.Fatalf("LastRun: got zero time")
	}
}

func TestScheduler_RunRefresh_PartialFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Scrape.Languages = []string{"en", "de"}

	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.refresh = func(ctx context.Context, lang string) (int, error) {
		if lang == "en" {
			return 0, errors.New("archive unreachable")
		}
		return 4, nil
	}
	s.runRefresh()

	st := s.Status()
	if st.LastFacts != 4 {
		t.Fatalf("LastFacts: got %d want 4", st.LastFacts)
	}
	if st.LastError == "" {
		t.Fatalf("LastError: expected failure recorded")
	}
}

func TestScheduler_Start(t *testing.T) {
	cfg := config.Default()
	cfg.Scrape.RefreshCron = "not a cron spec"
	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("Start: expected error for invalid spec")
	}

	cfg = config.Default()
	cfg.Scrape.RefreshCron = ""
	s, err = NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start without spec: %v", err)
	}
	s.Stop()

	cfg = config.Default()
	cfg.Scrape.RefreshCron = "0 3 * * *"
	s, err = NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestNewScheduler_NilConfig(t *testing.T) {
	if _, err := NewScheduler(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
