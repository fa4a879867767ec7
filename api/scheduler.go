package api

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/corpus"
	"github.com/wikifactslab/wikifacts/internal/dyk"
	"github.com/wikifactslab/wikifacts/internal/wikiapi"
)

const refreshTimeout = 30 * time.Minute

// Scheduler keeps the benchmark live: on each cron tick it re-scrapes the
// current archive month for every configured language, merges the facts
// into the raw scrape file, and rebuilds the dataset splits. The dataset
// watcher picks up the rewrite, so the server starts serving the new facts
// without a restart.
type Scheduler struct {
	cfg  *config.Config
	cron *cron.Cron

	mu     sync.Mutex
	status ScrapeStatus

	refresh func(ctx context.Context, lang string) (int, error)
}

// ScrapeStatus reports the last scheduled refresh.
type ScrapeStatus struct {
	Cron      string    `json:"cron,omitempty"`
	Languages []string  `json:"languages"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	LastFacts int       `json:"last_facts"`
}

func NewScheduler(cfg *config.Config) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	s := &Scheduler{
		cfg: cfg,
		status: ScrapeStatus{
			Cron:      strings.TrimSpace(cfg.Scrape.RefreshCron),
			Languages: append([]string(nil), cfg.Scrape.Languages...),
		},
	}
	s.refresh = s.refreshLanguage
	return s, nil
}

// Start registers the refresh job. A scheduler without a cron spec stays
// idle; Start is then a no-op.
func (s *Scheduler) Start() error {
	if s == nil {
		return errors.New("api: nil scheduler")
	}
	spec := strings.TrimSpace(s.cfg.Scrape.RefreshCron)
	if spec == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, s.runRefresh); err != nil {
		return fmt.Errorf("api: refresh cron %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the cron loop. A refresh already in flight finishes.
func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Stop()
}

// Status returns a copy of the current refresh state.
func (s *Scheduler) Status() ScrapeStatus {
	if s == nil {
		return ScrapeStatus{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Languages = append([]string(nil), s.status.Languages...)
	return st
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	total := 0
	var firstErr error
	for _, lang := range s.cfg.Scrape.Languages {
		n, err := s.refresh(ctx, lang)
		if err != nil {
			scrapeRefreshTotal.WithLabelValues(lang, "error").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("api: refresh %s: %w", lang, err)
			}
			continue
		}
		scrapeRefreshTotal.WithLabelValues(lang, "ok").Inc()
		scrapeFactsTotal.WithLabelValues(lang).Add(float64(n))
		total += n
	}

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRun = time.Now().UTC()
	s.status.LastFacts = total
	s.status.LastError = ""
	if firstErr != nil {
		s.status.LastError = firstErr.Error()
	}
	s.mu.Unlock()
}

// refreshLanguage re-scrapes the month the archive is currently collecting
// and rebuilds the language's dataset splits from the merged raw facts.
func (s *Scheduler) refreshLanguage(ctx context.Context, lang string) (int, error) {
	scraper := dyk.NewScraper(
		dyk.WithDelay(s.cfg.Scrape.RequestDelay),
		dyk.WithUserAgent(s.cfg.Scrape.UserAgent),
	)

	archive, err := scraper.ArchiveMonths(ctx, lang)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	year := strconv.Itoa(now.Year())
	var month *dyk.Month
	for i, m := range archive[year] {
		num, ok := dyk.MonthNumber(lang, m.Name)
		if ok && num == now.Month() && m.Exists {
			month = &archive[year][i]
			break
		}
	}
	if month == nil {
		// The month page has not been created yet; nothing to refresh.
		return 0, nil
	}

	facts, err := scraper.MonthFacts(ctx, lang, month.URL)
	if err != nil {
		return 0, err
	}

	rawPath := dyk.RawFactsPath(s.cfg.Scrape.OutputDir, lang)
	raw, err := dyk.LoadRawFacts(rawPath)
	if err != nil {
		raw = dyk.RawFacts{}
	}
	if raw[year] == nil {
		raw[year] = make(map[string][]dyk.Fact)
	}
	raw[year][month.Name] = facts
	if err := dyk.SaveRawFacts(rawPath, raw); err != nil {
		return 0, err
	}

	builder := corpus.NewBuilder(wikiapi.NewClient(wikiapi.WithUserAgent(s.cfg.Scrape.UserAgent)), lang)
	res, err := builder.Build(ctx, raw, nil)
	if err != nil {
		return 0, err
	}
	if err := corpus.Write(filepath.Join(s.cfg.Dataset.Dir, lang), res); err != nil {
		return 0, err
	}
	return len(facts), nil
}
