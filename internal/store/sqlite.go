package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("store: run not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt    *sql.Stmt
	insertAnswerStmt *sql.Stmt
	getRunStmt       *sql.Stmt
	answersByRunStmt *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			dataset TEXT NOT NULL,
			language TEXT NOT NULL,
			mode TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			abstained INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			abstention_rate REAL NOT NULL,
			total_tokens INTEGER NOT NULL,
			metrics_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			run_id TEXT NOT NULL,
			query_id TEXT NOT NULL,
			expected TEXT NOT NULL,
			predicted TEXT NOT NULL,
			raw TEXT,
			correct INTEGER NOT NULL,
			abstained INTEGER NOT NULL,
			retrieved_json TEXT,
			tokens INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, query_id),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model_dataset ON runs(model, dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_run_id ON answers(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, model, provider, dataset, language, mode, started_at, finished_at,
					total, correct, abstained, failed, accuracy, abstention_rate, total_tokens, metrics_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertAnswerStmt,
			query: `
				INSERT INTO answers (
					run_id, query_id, expected, predicted, raw, correct, abstained,
					retrieved_json, tokens, latency_ms, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert answer: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, model, provider, dataset, language, mode, started_at, finished_at,
					total, correct, abstained, failed, accuracy, abstention_rate, total_tokens, metrics_json
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.answersByRunStmt,
			query: `
				SELECT run_id, query_id, expected, predicted, raw, correct, abstained,
					retrieved_json, tokens, latency_ms, error
				FROM answers
				WHERE run_id = ?
				ORDER BY query_id ASC
			`,
			errFmt: "store: prepare get answers: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertAnswerStmt,
		s.getRunStmt,
		s.answersByRunStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary and its answers in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if strings.TrimSpace(run.Model) == "" {
		return errors.New("store: empty model")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return errors.New("store: missing run timestamps")
	}

	metricsJSON := []byte("null")
	if run.Metrics != nil {
		var err error
		metricsJSON, err = json.Marshal(run.Metrics)
		if err != nil {
			return fmt.Errorf("store: marshal run metrics: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	runStmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer runStmt.Close()

	_, err = runStmt.ExecContext(
		ctx,
		id,
		strings.TrimSpace(run.Model),
		strings.TrimSpace(run.Provider),
		strings.TrimSpace(run.Dataset),
		strings.TrimSpace(run.Language),
		strings.TrimSpace(run.Mode),
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
		run.Total,
		run.Correct,
		run.Abstained,
		run.Failed,
		run.Accuracy,
		run.AbstentionRate,
		run.TotalTokens,
		string(metricsJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	if len(run.Answers) > 0 {
		ansStmt := tx.StmtContext(ctx, s.insertAnswerStmt)
		defer ansStmt.Close()

		for i := range run.Answers {
			a := &run.Answers[i]
			retrievedJSON := []byte("null")
			if a.Retrieved != nil {
				retrievedJSON, err = json.Marshal(a.Retrieved)
				if err != nil {
					return fmt.Errorf("store: marshal retrieved ids: %w", err)
				}
			}
			_, err = ansStmt.ExecContext(
				ctx,
				id,
				a.QueryID,
				a.Expected,
				a.Predicted,
				a.Raw,
				boolToInt(a.Correct),
				boolToInt(a.Abstained),
				string(retrievedJSON),
				a.Tokens,
				a.LatencyMs,
				a.Error,
			)
			if err != nil {
				return fmt.Errorf("store: insert answer %s: %w", a.QueryID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// GetRun loads a run summary without its answers.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns run summaries newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	query := `
		SELECT id, model, provider, dataset, language, mode, started_at, finished_at,
			total, correct, abstained, failed, accuracy, abstention_rate, total_tokens, metrics_json
		FROM runs
	`
	var conds []string
	var args []any
	if v := strings.TrimSpace(filter.Model); v != "" {
		conds = append(conds, "model = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Dataset); v != "" {
		conds = append(conds, "dataset = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Mode); v != "" {
		conds = append(conds, "mode = ?")
		args = append(args, v)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "started_at <= ?")
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan runs: %w", err)
	}
	return out, nil
}

// GetAnswers loads the per-query answers of a run in query id order.
func (s *SQLiteStore) GetAnswers(ctx context.Context, runID string) ([]*AnswerRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.answersByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get answers: %w", err)
	}
	defer rows.Close()

	var out []*AnswerRecord
	for rows.Next() {
		var a AnswerRecord
		var correct, abstained int
		var raw, retrievedJSON, errText sql.NullString
		if err := rows.Scan(
			&a.RunID,
			&a.QueryID,
			&a.Expected,
			&a.Predicted,
			&raw,
			&correct,
			&abstained,
			&retrievedJSON,
			&a.Tokens,
			&a.LatencyMs,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("store: scan answer: %w", err)
		}
		a.Raw = raw.String
		a.Error = errText.String
		a.Correct = correct != 0
		a.Abstained = abstained != 0
		if retrievedJSON.Valid && retrievedJSON.String != "" && retrievedJSON.String != "null" {
			if err := json.Unmarshal([]byte(retrievedJSON.String), &a.Retrieved); err != nil {
				return nil, fmt.Errorf("store: decode retrieved ids: %w", err)
			}
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan answers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dst ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var run RunRecord
	var startedMS, finishedMS int64
	var metricsJSON sql.NullString
	if err := row.Scan(
		&run.ID,
		&run.Model,
		&run.Provider,
		&run.Dataset,
		&run.Language,
		&run.Mode,
		&startedMS,
		&finishedMS,
		&run.Total,
		&run.Correct,
		&run.Abstained,
		&run.Failed,
		&run.Accuracy,
		&run.AbstentionRate,
		&run.TotalTokens,
		&metricsJSON,
	); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedMS).UTC()
	run.FinishedAt = time.UnixMilli(finishedMS).UTC()
	if metricsJSON.Valid && metricsJSON.String != "" && metricsJSON.String != "null" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &run.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
