package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/dyk"
)

type scrapeOptions struct {
	langs  []string
	output string
}

func newScrapeCmd(st *cliState) *cobra.Command {
	var opts scrapeOptions

	cmd := &cobra.Command{
		Use:     "scrape",
		Short:   "Scrape DYK archives into raw facts files",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.langs, "lang", nil, "languages to scrape (default: config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output directory (default: config)")

	return cmd
}

// scrapeLanguage is a seam for tests.
var scrapeLanguage = func(ctx context.Context, cfg *config.Config, lang string, progress func(year, month string, facts int)) (dyk.RawFacts, error) {
	scraper := dyk.NewScraper(
		dyk.WithDelay(cfg.Scrape.RequestDelay),
		dyk.WithUserAgent(cfg.Scrape.UserAgent),
	)
	return scraper.Scrape(ctx, lang, progress)
}

func runScrape(cmd *cobra.Command, st *cliState, opts *scrapeOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("scrape: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("scrape: nil options")
	}

	langs := resolveLanguages(opts.langs, st.cfg)
	if len(langs) == 0 {
		return fmt.Errorf("scrape: no languages configured")
	}

	outDir := strings.TrimSpace(opts.output)
	if outDir == "" {
		outDir = st.cfg.Scrape.OutputDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	for _, lang := range langs {
		_, _ = fmt.Fprintf(out, "Scraping %s archive...\n", lang)

		facts, err := scrapeLanguage(ctx, st.cfg, lang, func(year, month string, n int) {
			_, _ = fmt.Fprintf(out, "  %s %s: %d facts\n", year, month, n)
		})
		if err != nil {
			return err
		}

		path := dyk.RawFactsPath(outDir, lang)
		if err := saveRawFacts(path, facts); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Saved %d facts to %s\n", facts.Count(), path)
	}
	return nil
}

func resolveLanguages(flagLangs []string, cfg *config.Config) []string {
	src := flagLangs
	if len(src) == 0 && cfg != nil {
		src = cfg.Scrape.Languages
	}
	out := make([]string, 0, len(src))
	for _, lang := range src {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			out = append(out, lang)
		}
	}
	return out
}
