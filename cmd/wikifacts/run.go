package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wikifactslab/wikifacts/internal/benchmark"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/leaderboard"
	"github.com/wikifactslab/wikifacts/internal/llm"
	"github.com/wikifactslab/wikifacts/internal/retrieval"
	"github.com/wikifactslab/wikifacts/internal/store"
	"github.com/wikifactslab/wikifacts/internal/verifier"
)

var errQueriesFailed = errors.New("wikifacts: queries failed")

type runOptions struct {
	lang     string
	mode     string
	provider string
	model    string
	limit    int
	topK     int
	output   string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a fact-verification benchmark and save results",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.lang, "lang", "en", "dataset language")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "closed-book|oracle|rag (overrides config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (overrides config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (overrides config)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "evaluate only the first N queries (0 = all)")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "context fragments per fact (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "table", "output format: table|json")

	return cmd
}

func runBenchmark(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	lang := strings.ToLower(strings.TrimSpace(opts.lang))
	if lang == "" {
		return fmt.Errorf("run: missing --lang")
	}

	modeName := strings.TrimSpace(opts.mode)
	if modeName == "" {
		modeName = st.cfg.Evaluation.Mode
	}
	mode, err := benchmark.ParseMode(modeName)
	if err != nil {
		return err
	}

	format := strings.ToLower(strings.TrimSpace(opts.output))
	if format != "table" && format != "json" {
		return fmt.Errorf("run: invalid --output %q (expected table|json)", opts.output)
	}

	provider, modelName, err := resolveProvider(st.cfg, opts.provider, opts.model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ds, err := loadDataset(ctx, filepath.Join(st.cfg.Dataset.Dir, lang))
	if err != nil {
		return err
	}
	if opts.limit > 0 && opts.limit < len(ds.Queries) {
		ds.Queries = ds.Queries[:opts.limit]
	}

	checker := verifier.New(provider,
		verifier.WithMaxAttempts(st.cfg.Evaluation.MaxAttempts),
	)

	runner := &benchmark.Runner{
		Checker:     checker,
		Model:       modelName,
		Concurrency: st.cfg.Evaluation.Concurrency,
		Timeout:     st.cfg.Evaluation.Timeout,
		TopK:        opts.topK,
	}
	if runner.TopK <= 0 {
		runner.TopK = st.cfg.Evaluation.TopK
	}

	if mode != benchmark.ModeClosedBook {
		embedder, embErr := embedderFromConfig(st.cfg)
		if embErr != nil {
			// Oracle mode can score fragments lexically; rag needs the
			// embedder for the vector half of the index.
			if mode == benchmark.ModeRAG {
				return embErr
			}
			embedder = nil
		}

		retriever, err := retrieval.New(embedder, st.cfg.Evaluation.Splitter, lang)
		if err != nil {
			return err
		}
		runner.Retriever = retriever

		if mode == benchmark.ModeRAG {
			path := strings.TrimSpace(st.cfg.Storage.IndexPath)
			if path == "" {
				return fmt.Errorf("run: rag mode needs storage.index_path (build it with the index command)")
			}
			ix, err := openIndex(path, embedder)
			if err != nil {
				return err
			}
			defer ix.Close()
			runner.Searcher = ix
		}
	}

	startedAt := time.Now().UTC()
	report, runErr := runner.Run(ctx, ds, mode)
	if report == nil {
		return runErr
	}
	finishedAt := time.Now().UTC()

	if err := printReport(cmd, report, format); err != nil {
		return err
	}

	if err := saveReport(cmd, st.cfg, report, provider.Name(), lang, startedAt, finishedAt); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return errQueriesFailed
	}
	return nil
}

func printReport(cmd *cobra.Command, report *benchmark.Report, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	_, _ = fmt.Fprintf(out, "Mode: %s  Model: %s\n", report.Mode, report.Model)
	_, _ = fmt.Fprintf(out, "Queries: %d  Correct: %d  Abstained: %d  Failed: %d\n",
		report.Total, report.Correct, report.Abstained, report.Failed)
	_, _ = fmt.Fprintf(out, "Accuracy: %.4f  Abstention rate: %.4f  Tokens: %d  Duration: %s\n",
		report.Accuracy, report.AbstentionRate, report.TotalTokens, report.Duration.Round(time.Millisecond))

	if len(report.Confusion) > 0 {
		keys := make([]string, 0, len(report.Confusion))
		for k := range report.Confusion {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = fmt.Fprintln(out, "Confusion:")
		for _, k := range keys {
			_, _ = fmt.Fprintf(out, "  %s: %d\n", k, report.Confusion[k])
		}
	}

	if m := report.Retrieval; m != nil {
		ks := make([]int, 0, len(m.RecallAt))
		for k := range m.RecallAt {
			ks = append(ks, k)
		}
		sort.Ints(ks)
		_, _ = fmt.Fprintf(out, "Retrieval (%d queries):\n", m.Queries)
		for _, k := range ks {
			_, _ = fmt.Fprintf(out, "  Recall@%d: %.4f\n", k, m.RecallAt[k])
		}
		_, _ = fmt.Fprintf(out, "  MRR: %.4f  nDCG@10: %.4f\n", m.MRR, m.NDCG)
	}
	return nil
}

func saveReport(cmd *cobra.Command, cfg *config.Config, report *benchmark.Report, providerName, lang string, startedAt, finishedAt time.Time) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	run := &store.RunRecord{
		ID:             newRunID(),
		Model:          report.Model,
		Provider:       providerName,
		Dataset:        lang,
		Language:       lang,
		Mode:           string(report.Mode),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Total:          report.Total,
		Correct:        report.Correct,
		Abstained:      report.Abstained,
		Failed:         report.Failed,
		Accuracy:       report.Accuracy,
		AbstentionRate: report.AbstentionRate,
		TotalTokens:    report.TotalTokens,
		Metrics:        runMetrics(report),
	}
	for _, res := range report.Results {
		run.Answers = append(run.Answers, store.AnswerRecord{
			RunID:     run.ID,
			QueryID:   res.ID,
			Expected:  string(res.Expected),
			Predicted: string(res.Predicted),
			Raw:       res.Raw,
			Correct:   res.Correct,
			Abstained: res.Abstained,
			Retrieved: res.Retrieved,
			Tokens:    res.Tokens,
			LatencyMs: res.LatencyMs,
			Error:     res.Error,
		})
	}
	if err := st.SaveRun(cmd.Context(), run); err != nil {
		return err
	}

	lb, err := openLeaderboardStore(cfg)
	if err != nil {
		return err
	}
	defer lb.Close()

	entry := &leaderboard.Entry{
		RunID:          run.ID,
		Model:          run.Model,
		Provider:       run.Provider,
		Dataset:        run.Dataset,
		Mode:           run.Mode,
		Accuracy:       run.Accuracy,
		AbstentionRate: run.AbstentionRate,
		Latency:        report.Duration.Milliseconds(),
		Tokens:         int64(run.TotalTokens),
		EvalDate:       finishedAt,
	}
	if err := lb.Save(cmd.Context(), entry); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run saved: id=%s provider=%s model=%s dataset=%s mode=%s accuracy=%.4f\n",
		run.ID, run.Provider, run.Model, run.Dataset, run.Mode, run.Accuracy)
	return nil
}

func runMetrics(report *benchmark.Report) map[string]any {
	out := map[string]any{
		"confusion": report.Confusion,
	}
	if m := report.Retrieval; m != nil {
		recall := make(map[string]float64, len(m.RecallAt))
		for k, v := range m.RecallAt {
			recall[fmt.Sprintf("recall_at_%d", k)] = v
		}
		out["retrieval"] = map[string]any{
			"recall":     recall,
			"mrr":        m.MRR,
			"ndcg_at_10": m.NDCG,
			"queries":    m.Queries,
		}
	}
	return out
}

func resolveProvider(cfg *config.Config, providerFlag, modelFlag string) (llm.Provider, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("run: missing config")
	}

	providerName := strings.TrimSpace(providerFlag)
	if providerName == "" {
		providerName = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	providerName = normalizeProvider(providerName)
	if providerName == "" {
		return nil, "", fmt.Errorf("run: missing provider")
	}

	// A --model flag overrides the configured model before the providers
	// are built; only the one picked below is returned.
	model := strings.TrimSpace(modelFlag)
	lookup := *cfg
	if model != "" {
		lookup.LLM.Providers = make(map[string]config.ProviderConfig, len(cfg.LLM.Providers))
		for key, pcfg := range cfg.LLM.Providers {
			pcfg.Model = model
			lookup.LLM.Providers[key] = pcfg
		}
	}

	reg, err := llm.NewRegistryFromConfig(&lookup)
	if err != nil {
		return nil, "", err
	}
	p, ok := reg.Get(providerName)
	if !ok {
		available := reg.Names()
		sort.Strings(available)
		return nil, "", fmt.Errorf("run: provider %q not configured (available: %s)", providerName, strings.Join(available, ", "))
	}

	modelName := model
	if modelName == "" {
		for key, pcfg := range cfg.LLM.Providers {
			if normalizeProvider(key) == providerName {
				modelName = strings.TrimSpace(pcfg.Model)
				break
			}
		}
	}
	if modelName == "" {
		modelName = "default"
	}
	return p, modelName, nil
}

func normalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "anthropic":
		return "claude"
	default:
		return name
	}
}

func openLeaderboardStore(cfg *config.Config) (*leaderboard.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("leaderboard: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = store.DefaultSQLitePath
		}
		return leaderboardNewStore(path)
	case "memory":
		return leaderboardNewStore(":memory:")
	default:
		return nil, fmt.Errorf("leaderboard: unsupported type %q", storageType)
	}
}
