// Package dyk scrapes Wikipedia "Did you know" archives into raw fact
// files. Each supported language has its own archive layout described by a
// Rules entry; the scraper itself is language-agnostic.
package dyk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type Scraper struct {
	client    *http.Client
	delay     time.Duration
	userAgent string
}

type ScraperOption func(*Scraper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ScraperOption {
	return func(s *Scraper) {
		if s == nil || c == nil {
			return
		}
		s.client = c
	}
}

// WithDelay sets the pause between page fetches.
func WithDelay(d time.Duration) ScraperOption {
	return func(s *Scraper) {
		if s == nil || d < 0 {
			return
		}
		s.delay = d
	}
}

// WithUserAgent sets the User-Agent header sent to Wikipedia.
func WithUserAgent(ua string) ScraperOption {
	return func(s *Scraper) {
		if s == nil {
			return
		}
		if ua = strings.TrimSpace(ua); ua != "" {
			s.userAgent = ua
		}
	}
}

func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{
		client:    &http.Client{Timeout: 30 * time.Second},
		delay:     500 * time.Millisecond,
		userAgent: "wikifacts-bench/1.0",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Scrape walks the whole archive for lang and returns every fact grouped by
// year and month. Months without a page are recorded as empty. progress may
// be nil.
func (s *Scraper) Scrape(ctx context.Context, lang string, progress func(year, month string, facts int)) (RawFacts, error) {
	if s == nil {
		return nil, errors.New("dyk: nil scraper")
	}
	if ctx == nil {
		return nil, errors.New("dyk: nil context")
	}

	archive, err := s.ArchiveMonths(ctx, lang)
	if err != nil {
		return nil, err
	}

	out := make(RawFacts, len(archive))
	for year, months := range archive {
		yearData := make(map[string][]Fact, len(months))
		for _, m := range months {
			if err := ctx.Err(); err != nil {
				return out, err
			}

			var facts []Fact
			if m.Exists {
				if err := s.pause(ctx); err != nil {
					return out, err
				}
				facts, err = s.MonthFacts(ctx, lang, m.URL)
				if err != nil {
					return out, fmt.Errorf("dyk: %s %s %s: %w", lang, year, m.Name, err)
				}
			}
			yearData[m.Name] = facts
			if progress != nil {
				progress(year, m.Name, len(facts))
			}
		}
		out[year] = yearData
	}
	return out, nil
}

// ArchiveMonths parses the archive index into year -> month page links.
func (s *Scraper) ArchiveMonths(ctx context.Context, lang string) (Archive, error) {
	if s == nil {
		return nil, errors.New("dyk: nil scraper")
	}

	rules, err := RulesFor(lang)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, rules.BaseURL+rules.ArchivePath)
	if err != nil {
		return nil, err
	}

	var archive Archive
	switch rules.Layout {
	case layoutYearTable:
		archive = parseYearTable(doc, rules.BaseURL)
	case layoutYearList:
		archive = parseYearList(doc, rules.BaseURL)
	default:
		return nil, fmt.Errorf("dyk: unknown archive layout for %q", lang)
	}

	if len(archive) == 0 {
		return nil, fmt.Errorf("dyk: no archive years found for %q", lang)
	}
	return archive, nil
}

// MonthFacts parses one month archive page.
func (s *Scraper) MonthFacts(ctx context.Context, lang, pageURL string) ([]Fact, error) {
	if s == nil {
		return nil, errors.New("dyk: nil scraper")
	}

	rules, err := RulesFor(lang)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return parseMonthFacts(doc, rules), nil
}

// SaveRawFacts writes the scrape output as an indented JSON file.
func SaveRawFacts(path string, facts RawFacts) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("dyk: empty output path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dyk: create output dir: %w", err)
		}
	}

	b, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return fmt.Errorf("dyk: marshal raw facts: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("dyk: write %q: %w", path, err)
	}
	return nil
}

// RawFactsPath is the conventional location of a language's raw facts file
// under the scrape output directory.
func RawFactsPath(dir, lang string) string {
	return filepath.Join(dir, lang, "raw_facts.json")
}

// LoadRawFacts reads a scrape output file.
func LoadRawFacts(path string) (RawFacts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dyk: read %q: %w", path, err)
	}

	var out RawFacts
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("dyk: parse %q: %w", path, err)
	}
	return out, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dyk: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dyk: fetch %q: %w", pageURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dyk: fetch %q: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dyk: parse %q: %w", pageURL, err)
	}
	return doc, nil
}

func (s *Scraper) pause(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
