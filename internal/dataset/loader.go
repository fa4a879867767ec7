package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	CorpusFile  = "corpus.jsonl"
	QueriesFile = "queries.jsonl"
)

// Load reads both splits from dir.
func Load(ctx context.Context, dir string) (*Dataset, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("dataset: empty dataset dir")
	}

	corpus, err := LoadCorpus(ctx, filepath.Join(dir, CorpusFile))
	if err != nil {
		return nil, err
	}
	queries, err := LoadQueries(ctx, filepath.Join(dir, QueriesFile))
	if err != nil {
		return nil, err
	}
	return &Dataset{Corpus: corpus, Queries: queries}, nil
}

// LoadCorpus reads the corpus split into an id-keyed map. path may be a
// single .jsonl file or a directory of .jsonl shards.
func LoadCorpus(ctx context.Context, path string) (map[string]*Document, error) {
	docs, err := readJSONL[Document](ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dataset: load corpus %q: %w", path, err)
	}

	out := make(map[string]*Document, len(docs))
	for i := range docs {
		d := &docs[i]
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("dataset: corpus entry %d has empty id", i)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("dataset: duplicate corpus id %q", id)
		}
		out[id] = d
	}
	return out, nil
}

// LoadQueries reads the queries split preserving input order.
func LoadQueries(ctx context.Context, path string) ([]*Query, error) {
	rows, err := readJSONL[Query](ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dataset: load queries %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]*Query, 0, len(rows))
	for i := range rows {
		q := &rows[i]
		id := strings.TrimSpace(q.ID)
		if id == "" {
			return nil, fmt.Errorf("dataset: query entry %d has empty id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("dataset: duplicate query id %q", id)
		}
		seen[id] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

// WriteJSONL writes entries to path, one JSON object per line.
func WriteJSONL[T any](path string, entries []T) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("dataset: empty jsonl path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: create dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %q: %w", path, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return fmt.Errorf("dataset: encode jsonl: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("dataset: flush %q: %w", path, err)
	}
	return f.Close()
}

func readJSONL[T any](ctx context.Context, path string) ([]T, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty jsonl path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return readJSONLDir[T](ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeJSONLStream[T](ctx, f)
}

func readJSONLDir[T any](ctx context.Context, dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(e.Name()))
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	var out []T
	for _, p := range paths {
		items, err := readJSONL[T](ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func decodeJSONLStream[T any](ctx context.Context, r io.Reader) ([]T, error) {
	sc := bufio.NewScanner(r)
	// Full article texts routinely exceed the default scanner buffer.
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []T
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return out, fmt.Errorf("parse jsonl line %d: %w", len(out)+1, err)
		}
		out = append(out, item)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}
