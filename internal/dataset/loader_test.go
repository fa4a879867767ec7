package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestSplits(t *testing.T, dir string) {
	t.Helper()

	corpus := `{"id":"c-0","text":"Full text.\n\nMore.","abstract":"Full text.","metadata":{"url":"https://en.wikipedia.org/wiki/A"}}
{"id":"c-1","text":"Other article","abstract":"Other article","metadata":{"url":"https://en.wikipedia.org/wiki/B"}}
`
	queries := `{"id":"q-0","text":"Did you know that A exists?","linked articles":["c-0","c-1"],"relevant articles":["c-0"],"metadata":{"fact_date":"2024-03"}}
{"id":"q-1","text":"Did you know that B is old?","linked articles":["c-1"],"relevant articles":["c-1"],"metadata":{"fact_date":"2024-04","label":"no"}}
`
	if err := os.WriteFile(filepath.Join(dir, CorpusFile), []byte(corpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, QueriesFile), []byte(queries), 0o644); err != nil {
		t.Fatalf("write queries: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeTestSplits(t, dir)

	ds, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(ds.Corpus) != 2 {
		t.Fatalf("corpus size: got %d want 2", len(ds.Corpus))
	}
	if len(ds.Queries) != 2 {
		t.Fatalf("queries size: got %d want 2", len(ds.Queries))
	}

	doc, ok := ds.Document("c-0")
	if !ok {
		t.Fatalf("Document(c-0): not found")
	}
	if doc.Abstract != "Full text." {
		t.Fatalf("abstract: got %q", doc.Abstract)
	}

	q := ds.Queries[0]
	if got := q.ExpectedLabel(); got != "yes" {
		t.Fatalf("default label: got %q want yes", got)
	}
	if len(q.LinkedArticles) != 2 || q.LinkedArticles[0] != "c-0" {
		t.Fatalf("linked articles: got %v", q.LinkedArticles)
	}
	if got := ds.Queries[1].ExpectedLabel(); got != "no" {
		t.Fatalf("explicit label: got %q want no", got)
	}
}

func TestLoadQueries_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	body := `{"id":"q-0","text":"a"}
{"id":"q-0","text":"b"}
`
	path := filepath.Join(dir, QueriesFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadQueries(context.Background(), path); err == nil {
		t.Fatalf("LoadQueries: expected duplicate id error")
	}
}

func TestLoadCorpus_Directory(t *testing.T) {
	dir := t.TempDir()
	shards := filepath.Join(dir, "corpus")
	if err := os.MkdirAll(shards, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(shards, "a.jsonl"), []byte(`{"id":"c-0","text":"x"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
	if err := os.WriteFile(filepath.Join(shards, "b.jsonl"), []byte(`{"id":"c-1","text":"y"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}

	corpus, err := LoadCorpus(context.Background(), shards)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("corpus size: got %d want 2", len(corpus))
	}
}

func TestWriteJSONL_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", QueriesFile)

	in := []Query{
		{ID: "q-0", Text: "fact", LinkedArticles: []string{"c-0"}},
	}
	if err := WriteJSONL(path, in); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	out, err := LoadQueries(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}
	if len(out) != 1 || out[0].ID != "q-0" || out[0].LinkedArticles[0] != "c-0" {
		t.Fatalf("round trip: got %+v", out)
	}
}
