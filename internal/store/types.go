package store

import (
	"context"
	"time"
)

// RunWriter persists benchmark runs.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord) error
}

// RunReader reads back runs and their per-query answers.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetAnswers(ctx context.Context, runID string) ([]*AnswerRecord, error)
}

// Store is the full persistence surface for benchmark runs.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// RunRecord is one benchmark run summary.
type RunRecord struct {
	ID             string
	Model          string
	Provider       string
	Dataset        string
	Language       string
	Mode           string
	StartedAt      time.Time
	FinishedAt     time.Time
	Total          int
	Correct        int
	Abstained      int
	Failed         int
	Accuracy       float64
	AbstentionRate float64
	TotalTokens    int
	Metrics        map[string]any
	Answers        []AnswerRecord
}

// AnswerRecord is the outcome for one query within a run.
type AnswerRecord struct {
	RunID     string
	QueryID   string
	Expected  string
	Predicted string
	Raw       string
	Correct   bool
	Abstained bool
	Retrieved []string
	Tokens    int
	LatencyMs int64
	Error     string
}

// RunFilter narrows ListRuns output.
type RunFilter struct {
	Model   string
	Dataset string
	Mode    string
	Since   time.Time
	Until   time.Time
	Limit   int
}
