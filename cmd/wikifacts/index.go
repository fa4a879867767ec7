package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wikifactslab/wikifacts/internal/dataset"
)

type indexOptions struct {
	lang string
	path string
}

func newIndexCmd(st *cliState) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:     "index",
		Short:   "Build the hybrid search index over a dataset corpus",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.lang, "lang", "en", "dataset language")
	cmd.Flags().StringVar(&opts.path, "path", "", "index file path (default: config storage.index_path)")

	return cmd
}

func runIndex(cmd *cobra.Command, st *cliState, opts *indexOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("index: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("index: nil options")
	}

	lang := strings.ToLower(strings.TrimSpace(opts.lang))
	if lang == "" {
		return fmt.Errorf("index: missing --lang")
	}

	path := strings.TrimSpace(opts.path)
	if path == "" {
		path = strings.TrimSpace(st.cfg.Storage.IndexPath)
	}
	if path == "" {
		return fmt.Errorf("index: missing index path (set --path or storage.index_path)")
	}

	embedder, err := embedderFromConfig(st.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ds, err := loadDataset(ctx, filepath.Join(st.cfg.Dataset.Dir, lang))
	if err != nil {
		return err
	}

	docs := make([]*dataset.Document, 0, len(ds.Corpus))
	for _, doc := range ds.Corpus {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	ix, err := openIndex(path, embedder)
	if err != nil {
		return err
	}
	defer ix.Close()

	out := cmd.OutOrStdout()
	if err := ix.Build(ctx, docs, func(done, total int) {
		_, _ = fmt.Fprintf(out, "  indexed %d/%d documents\n", done, total)
	}); err != nil {
		return err
	}

	count, err := ix.Count(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Index %s holds %d documents\n", path, count)
	return nil
}
