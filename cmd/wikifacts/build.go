package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/corpus"
	"github.com/wikifactslab/wikifacts/internal/dyk"
	"github.com/wikifactslab/wikifacts/internal/wikiapi"
)

type buildOptions struct {
	langs []string
	input string
	out   string
}

func newBuildCmd(st *cliState) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:     "build",
		Short:   "Build dataset splits from scraped raw facts",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.langs, "lang", nil, "languages to build (default: config)")
	cmd.Flags().StringVar(&opts.input, "input", "", "raw facts directory (default: scrape output dir)")
	cmd.Flags().StringVar(&opts.out, "out", "", "dataset directory (default: config)")

	return cmd
}

// buildCorpus is a seam for tests.
var buildCorpus = func(ctx context.Context, cfg *config.Config, lang string, raw dyk.RawFacts, progress func(done, total int)) (*corpus.Result, error) {
	wiki := wikiapi.NewClient(wikiapi.WithUserAgent(cfg.Scrape.UserAgent))
	return corpus.NewBuilder(wiki, lang).Build(ctx, raw, progress)
}

func runBuild(cmd *cobra.Command, st *cliState, opts *buildOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("build: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("build: nil options")
	}

	langs := resolveLanguages(opts.langs, st.cfg)
	if len(langs) == 0 {
		return fmt.Errorf("build: no languages configured")
	}

	inDir := strings.TrimSpace(opts.input)
	if inDir == "" {
		inDir = st.cfg.Scrape.OutputDir
	}
	outDir := strings.TrimSpace(opts.out)
	if outDir == "" {
		outDir = st.cfg.Dataset.Dir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	for _, lang := range langs {
		raw, err := loadRawFacts(dyk.RawFactsPath(inDir, lang))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Building %s dataset from %d facts...\n", lang, raw.Count())

		res, err := buildCorpus(ctx, st.cfg, lang, raw, func(done, total int) {
			if done%25 == 0 || done == total {
				_, _ = fmt.Fprintf(out, "  fetched %d/%d articles\n", done, total)
			}
		})
		if err != nil {
			return err
		}

		dir := filepath.Join(outDir, lang)
		if err := corpus.Write(dir, res); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %d documents and %d queries to %s\n", len(res.Corpus), len(res.Queries), dir)
		if n := len(res.FailedLinks); n > 0 {
			_, _ = fmt.Fprintf(out, "  %d linked articles could not be fetched\n", n)
		}
	}
	return nil
}
