// Package benchmark runs fact-verification evaluations over a DYK dataset
// and aggregates answer quality and retrieval quality metrics.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/index"
	"github.com/wikifactslab/wikifacts/internal/retrieval"
	"github.com/wikifactslab/wikifacts/internal/verifier"
)

// Mode selects how much context the model sees per fact.
type Mode string

const (
	// ModeClosedBook asks about the bare fact with no context.
	ModeClosedBook Mode = "closed-book"
	// ModeOracle retrieves fragments from the fact's own linked articles.
	ModeOracle Mode = "oracle"
	// ModeRAG searches the whole corpus index for context.
	ModeRAG Mode = "rag"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeClosedBook:
		return ModeClosedBook, nil
	case ModeOracle:
		return ModeOracle, nil
	case ModeRAG:
		return ModeRAG, nil
	default:
		return "", fmt.Errorf("benchmark: unknown mode %q", s)
	}
}

// FactChecker is the verification side of the run.
type FactChecker interface {
	Verify(ctx context.Context, fact string, fragments []string) (*verifier.Verdict, error)
}

// Searcher finds corpus documents for a fact (rag mode).
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
}

// FragmentRetriever picks fragments out of article text.
type FragmentRetriever interface {
	Retrieve(ctx context.Context, fact, article string, k int) ([]retrieval.Fragment, error)
}

// Runner drives one evaluation run.
type Runner struct {
	Checker   FactChecker
	Retriever FragmentRetriever
	Searcher  Searcher

	Model       string
	Concurrency int
	Timeout     time.Duration
	TopK        int
}

// QueryResult is the outcome for a single fact.
type QueryResult struct {
	ID        string         `json:"id"`
	Expected  verifier.Label `json:"expected"`
	Predicted verifier.Label `json:"predicted"`
	Raw       string         `json:"raw,omitempty"`
	Correct   bool           `json:"correct"`
	Abstained bool           `json:"abstained"`
	Retrieved []string       `json:"retrieved,omitempty"`
	Fragments int            `json:"fragments"`
	Tokens    int            `json:"tokens"`
	LatencyMs int64          `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
}

// Report aggregates a full run.
type Report struct {
	Mode           Mode              `json:"mode"`
	Model          string            `json:"model"`
	Total          int               `json:"total"`
	Correct        int               `json:"correct"`
	Abstained      int               `json:"abstained"`
	Failed         int               `json:"failed"`
	Accuracy       float64           `json:"accuracy"`
	AbstentionRate float64           `json:"abstention_rate"`
	Confusion      map[string]int    `json:"confusion"`
	Retrieval      *RetrievalMetrics `json:"retrieval,omitempty"`
	TotalTokens    int               `json:"total_tokens"`
	Duration       time.Duration     `json:"duration"`
	Results        []QueryResult     `json:"results"`
}

// Run evaluates every query of ds in the given mode. Queries run
// concurrently up to Runner.Concurrency; a canceled context marks the
// remaining queries failed and returns the partial report with the error.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, mode Mode) (*Report, error) {
	if r == nil {
		return nil, errors.New("benchmark: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("benchmark: nil context")
	}
	if r.Checker == nil {
		return nil, errors.New("benchmark: nil checker")
	}
	if ds == nil || len(ds.Queries) == 0 {
		return nil, errors.New("benchmark: empty dataset")
	}
	if mode != ModeClosedBook && r.Retriever == nil {
		return nil, fmt.Errorf("benchmark: mode %s needs a fragment retriever", mode)
	}
	if mode == ModeRAG && r.Searcher == nil {
		return nil, errors.New("benchmark: rag mode needs a searcher")
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	topK := r.TopK
	if topK <= 0 {
		topK = 5
	}

	start := time.Now()
	results := make([]QueryResult, len(ds.Queries))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

queryLoop:
	for i := range ds.Queries {
		select {
		case <-ctx.Done():
			err := ctx.Err()
			for j := i; j < len(ds.Queries); j++ {
				results[j] = QueryResult{
					ID:        ds.Queries[j].ID,
					Expected:  expectedLabel(ds.Queries[j]),
					Predicted: verifier.LabelUnknown,
					Error:     err.Error(),
				}
			}
			break queryLoop
		case sem <- struct{}{}:
		}

		q := ds.Queries[i]
		idx := i

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = r.runQuery(ctx, ds, q, mode, topK)
		}()
	}
	wg.Wait()

	report := r.summarize(mode, results, time.Since(start))
	report.ScoreRetrieval(ds)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) runQuery(ctx context.Context, ds *dataset.Dataset, q *dataset.Query, mode Mode, topK int) QueryResult {
	out := QueryResult{
		ID:        q.ID,
		Expected:  expectedLabel(q),
		Predicted: verifier.LabelUnknown,
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	fragments, retrieved, err := r.gatherContext(ctx, ds, q, mode, topK)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Retrieved = retrieved
	out.Fragments = len(fragments)

	verdict, err := r.Checker.Verify(ctx, q.Text, fragments)
	if verdict != nil {
		out.Predicted = verdict.Label
		out.Raw = verdict.Raw
		out.Tokens = verdict.Usage.InputTokens + verdict.Usage.OutputTokens
		out.LatencyMs = verdict.LatencyMs
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Correct = out.Predicted == out.Expected
	out.Abstained = out.Predicted == verifier.LabelUnknown
	return out
}

// gatherContext assembles the fragments the model is allowed to see, plus
// the retrieved corpus doc ids for retrieval scoring in rag mode.
func (r *Runner) gatherContext(ctx context.Context, ds *dataset.Dataset, q *dataset.Query, mode Mode, topK int) ([]string, []string, error) {
	switch mode {
	case ModeClosedBook:
		return nil, nil, nil

	case ModeOracle:
		article := joinDocs(ds, q.LinkedArticles)
		if article == "" {
			return nil, nil, nil
		}
		frags, err := r.Retriever.Retrieve(ctx, q.Text, article, topK)
		if err != nil {
			return nil, nil, fmt.Errorf("benchmark: oracle retrieve: %w", err)
		}
		return fragmentTexts(frags), nil, nil

	case ModeRAG:
		hits, err := r.Searcher.Search(ctx, q.Text, topK)
		if err != nil {
			return nil, nil, fmt.Errorf("benchmark: search: %w", err)
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.DocID
		}
		article := joinDocs(ds, ids)
		if article == "" {
			return nil, ids, nil
		}
		frags, err := r.Retriever.Retrieve(ctx, q.Text, article, topK)
		if err != nil {
			return nil, ids, fmt.Errorf("benchmark: rag retrieve: %w", err)
		}
		return fragmentTexts(frags), ids, nil

	default:
		return nil, nil, fmt.Errorf("benchmark: unknown mode %q", mode)
	}
}

func (r *Runner) summarize(mode Mode, results []QueryResult, elapsed time.Duration) *Report {
	report := &Report{
		Mode:      mode,
		Model:     strings.TrimSpace(r.Model),
		Total:     len(results),
		Confusion: make(map[string]int),
		Duration:  elapsed,
		Results:   results,
	}

	for i := range results {
		res := &results[i]
		if res.Error != "" {
			report.Failed++
		}
		if res.Correct {
			report.Correct++
		}
		if res.Abstained {
			report.Abstained++
		}
		report.TotalTokens += res.Tokens
		report.Confusion[confusionKey(res.Expected, res.Predicted)]++
	}
	if report.Total > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Total)
		report.AbstentionRate = float64(report.Abstained) / float64(report.Total)
	}
	return report
}

// ScoreRetrieval folds ranking metrics for rag-mode results into the
// report using the queries' relevance judgments.
func (report *Report) ScoreRetrieval(ds *dataset.Dataset) {
	if report == nil || ds == nil || report.Mode != ModeRAG {
		return
	}
	byID := make(map[string]*dataset.Query, len(ds.Queries))
	for _, q := range ds.Queries {
		byID[q.ID] = q
	}

	acc := newRetrievalAccumulator()
	for i := range report.Results {
		res := &report.Results[i]
		q, ok := byID[res.ID]
		if !ok {
			continue
		}
		acc.add(res.Retrieved, q.RelevantArticles)
	}
	report.Retrieval = acc.metrics()
}

func expectedLabel(q *dataset.Query) verifier.Label {
	return verifier.Label(q.ExpectedLabel())
}

func confusionKey(expected, predicted verifier.Label) string {
	return string(expected) + " -> " + string(predicted)
}

func joinDocs(ds *dataset.Dataset, ids []string) string {
	var sb strings.Builder
	for _, id := range ids {
		doc, ok := ds.Document(id)
		if !ok || doc == nil {
			continue
		}
		text := strings.TrimSpace(doc.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}

func fragmentTexts(frags []retrieval.Fragment) []string {
	if len(frags) == 0 {
		return nil
	}
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}
