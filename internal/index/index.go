// Package index provides corpus-scale hybrid retrieval over document
// abstracts: sqlite-vec KNN over embeddings fused with FTS5 BM25.
//
// The BM25 half needs mattn/go-sqlite3 compiled with the sqlite_fts5
// build tag. Without it the index opens fine but serves vector-only
// rankings.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/llm"
	"github.com/wikifactslab/wikifacts/internal/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

const (
	embedBatchSize = 64
	candidateMult  = 4
)

// Result is one search hit: a corpus document id with its fused score.
type Result struct {
	DocID string  `json:"doc_id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Index is a hybrid (vector + full text) corpus index backed by sqlite.
type Index struct {
	db         *sql.DB
	embedder   llm.Embedder
	dim        int
	weightVec  float64
	weightFTS  float64
	ftsEnabled bool
}

type Option func(*Index)

// WithWeights sets the RRF fusion weights for the vector and full-text
// rankings.
func WithWeights(vec, fts float64) Option {
	return func(ix *Index) {
		if ix == nil {
			return
		}
		if vec > 0 {
			ix.weightVec = vec
		}
		if fts > 0 {
			ix.weightFTS = fts
		}
	}
}

// Open creates or opens the index database at path. Use ":memory:" for an
// ephemeral index.
func Open(path string, embedder llm.Embedder, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("index: nil embedder")
	}
	dim := embedder.Dimensions()
	if dim <= 0 {
		return nil, fmt.Errorf("index: invalid embedding dimension %d", dim)
	}

	memory := path == ":memory:"
	if !memory {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("index: create dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	if memory {
		// Every new pool connection to :memory: is a separate empty
		// database, so the pool must stay on one long-lived connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := db.Exec(baseSchemaSQL(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: schema: %w", err)
	}
	ftsEnabled := true
	if _, err := db.Exec(ftsSchemaSQL); err != nil {
		if !missingFTS5(err) {
			db.Close()
			return nil, fmt.Errorf("index: fts schema: %w", err)
		}
		ftsEnabled = false
	}

	ix := &Index{
		db:         db,
		embedder:   embedder,
		dim:        dim,
		weightVec:  1,
		weightFTS:  1,
		ftsEnabled: ftsEnabled,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ix)
		}
	}
	return ix, nil
}

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM docs").Scan(&n)
	return n, err
}

// Build indexes the corpus: documents are embedded in batches on their
// abstract and inserted together with the FTS rows. Existing rows for the
// same doc id are replaced.
func (ix *Index) Build(ctx context.Context, corpus []*dataset.Document, progress func(done, total int)) error {
	if ix == nil || ix.db == nil {
		return errors.New("index: nil index")
	}

	for start := 0; start < len(corpus); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(corpus) {
			end = len(corpus)
		}
		batch := corpus[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = embeddingText(doc)
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("index: embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("index: embed batch: got %d vectors for %d docs", len(vecs), len(batch))
		}

		if err := ix.insertBatch(ctx, batch, vecs); err != nil {
			return err
		}
		if progress != nil {
			progress(end, len(corpus))
		}
	}
	return nil
}

func (ix *Index) insertBatch(ctx context.Context, batch []*dataset.Document, vecs [][]float32) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback()

	insertDoc, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO docs (doc_id, title, abstract) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("index: prepare: %w", err)
	}
	defer insertDoc.Close()

	insertVec, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO vec_docs (rowid, embedding) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("index: prepare: %w", err)
	}
	defer insertVec.Close()

	for i, doc := range batch {
		if doc == nil {
			continue
		}
		res, err := insertDoc.ExecContext(ctx, doc.ID, doc.Metadata.URL, doc.Abstract)
		if err != nil {
			return fmt.Errorf("index: insert %s: %w", doc.ID, err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("index: rowid %s: %w", doc.ID, err)
		}
		if len(vecs[i]) != ix.dim {
			return fmt.Errorf("index: %s: got %d-dim vector, want %d", doc.ID, len(vecs[i]), ix.dim)
		}
		if _, err := insertVec.ExecContext(ctx, rowid, serializeFloat32(vecs[i])); err != nil {
			return fmt.Errorf("index: insert vector %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// Search embeds the query, runs KNN and BM25 lookups concurrently and
// fuses both rankings with weighted RRF.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if ix == nil || ix.db == nil {
		return nil, errors.New("index: nil index")
	}
	if k <= 0 {
		return nil, fmt.Errorf("index: invalid k %d", k)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("index: empty query")
	}

	candidates := k * candidateMult

	var (
		wg      sync.WaitGroup
		vecHits []Result
		ftsHits []Result
		vecErr  error
		ftsErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vecHits, vecErr = ix.vectorSearch(ctx, query, candidates)
	}()
	if ix.ftsEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ftsHits, ftsErr = ix.ftsSearch(ctx, query, candidates)
		}()
	}
	wg.Wait()

	if vecErr != nil {
		return nil, vecErr
	}
	if ftsErr != nil {
		return nil, ftsErr
	}

	titles := make(map[string]string, len(vecHits)+len(ftsHits))
	for _, h := range vecHits {
		titles[h.DocID] = h.Title
	}
	for _, h := range ftsHits {
		titles[h.DocID] = h.Title
	}

	fused := retrieval.FuseRRF(
		retrieval.Ranking{Weight: ix.weightVec, Entries: toRanked(vecHits)},
		retrieval.Ranking{Weight: ix.weightFTS, Entries: toRanked(ftsHits)},
	)
	if k < len(fused) {
		fused = fused[:k]
	}

	out := make([]Result, len(fused))
	for i, r := range fused {
		out[i] = Result{DocID: r.ID, Title: titles[r.ID], Score: r.Score}
	}
	return out, nil
}

func (ix *Index) vectorSearch(ctx context.Context, query string, k int) ([]Result, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("index: embed query: got %d vectors", len(vecs))
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT d.doc_id, d.title, v.distance
		FROM vec_docs v
		JOIN docs d ON d.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(vecs[0]), k)
	if err != nil {
		return nil, fmt.Errorf("index: knn: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.DocID, &r.Title, &distance); err != nil {
			return nil, fmt.Errorf("index: knn scan: %w", err)
		}
		r.Score = 1.0 - distance
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ix *Index) ftsSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT d.doc_id, d.title, f.rank
		FROM docs_fts f
		JOIN docs d ON d.id = f.rowid
		WHERE docs_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("index: fts: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var rank float64
		if err := rows.Scan(&r.DocID, &r.Title, &rank); err != nil {
			return nil, fmt.Errorf("index: fts scan: %w", err)
		}
		// FTS5 rank is negative, lower is better.
		r.Score = -rank
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery quotes each token so user text cannot hit FTS5 query syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func embeddingText(doc *dataset.Document) string {
	if doc == nil {
		return ""
	}
	if s := strings.TrimSpace(doc.Abstract); s != "" {
		return s
	}
	return doc.Text
}

func toRanked(hits []Result) []retrieval.Ranked {
	out := make([]retrieval.Ranked, len(hits))
	for i, h := range hits {
		out[i] = retrieval.Ranked{ID: h.DocID, Score: h.Score}
	}
	return out
}

func baseSchemaSQL(dim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS docs (
    id INTEGER PRIMARY KEY,
    doc_id TEXT NOT NULL UNIQUE,
    title TEXT,
    abstract TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_docs USING vec0(
    embedding float[%d]
);
`, dim)
}

const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
    title,
    abstract,
    content='docs',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS docs_ai AFTER INSERT ON docs BEGIN
    INSERT INTO docs_fts(rowid, title, abstract) VALUES (new.id, new.title, new.abstract);
END;
CREATE TRIGGER IF NOT EXISTS docs_ad AFTER DELETE ON docs BEGIN
    INSERT INTO docs_fts(docs_fts, rowid, title, abstract) VALUES ('delete', old.id, old.title, old.abstract);
END;
CREATE TRIGGER IF NOT EXISTS docs_au AFTER UPDATE ON docs BEGIN
    INSERT INTO docs_fts(docs_fts, rowid, title, abstract) VALUES ('delete', old.id, old.title, old.abstract);
    INSERT INTO docs_fts(rowid, title, abstract) VALUES (new.id, new.title, new.abstract);
END;
`

func missingFTS5(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such module: fts5")
}

// serializeFloat32 converts a vector to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
