package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/wikifactslab/wikifacts/internal/dataset"
)

// hashEmbedder maps known texts to fixed unit vectors so KNN results are
// deterministic without a live embedding endpoint.
type hashEmbedder struct {
	vectors map[string][]float32
}

func (h *hashEmbedder) Name() string    { return "hash" }
func (h *hashEmbedder) Dimensions() int { return 3 }

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := h.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func testCorpus() []*dataset.Document {
	docs := []*dataset.Document{
		{ID: "c-0", Text: "The Aldobrandini Madonna is a painting by Raphael.", Abstract: "The Aldobrandini Madonna is a painting by Raphael."},
		{ID: "c-1", Text: "Mount Erebus is an active volcano in Antarctica.", Abstract: "Mount Erebus is an active volcano in Antarctica."},
		{ID: "c-2", Text: "The quokka is a small macropod native to Australia.", Abstract: "The quokka is a small macropod native to Australia."},
	}
	docs[0].Metadata.URL = "https://en.wikipedia.org/wiki/Aldobrandini_Madonna"
	docs[1].Metadata.URL = "https://en.wikipedia.org/wiki/Mount_Erebus"
	docs[2].Metadata.URL = "https://en.wikipedia.org/wiki/Quokka"
	return docs
}

func testEmbedder() *hashEmbedder {
	return &hashEmbedder{vectors: map[string][]float32{
		"The Aldobrandini Madonna is a painting by Raphael.":  {1, 0, 0},
		"Mount Erebus is an active volcano in Antarctica.":    {0, 1, 0},
		"The quokka is a small macropod native to Australia.": {0, 0.9, 0.1},
		"volcano in Antarctica": {0, 1, 0},
	}}
}

func TestIndex_BuildAndSearch(t *testing.T) {
	ix, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	ctx := context.Background()
	var lastDone int
	if err := ix.Build(ctx, testCorpus(), func(done, total int) { lastDone = done }); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if lastDone != 3 {
		t.Fatalf("progress: got %d want 3", lastDone)
	}

	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("Count: got %d want 3", n)
	}

	results, err := ix.Search(ctx, "volcano in Antarctica", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("Search: no results")
	}
	if results[0].DocID != "c-1" {
		t.Fatalf("top result: got %q want c-1 (%+v)", results[0].DocID, results)
	}
	if results[0].Title != "https://en.wikipedia.org/wiki/Mount_Erebus" {
		t.Fatalf("title: got %q", results[0].Title)
	}
	if len(results) > 2 {
		t.Fatalf("len(results): got %d want <=2", len(results))
	}
}

func TestIndex_SearchValidation(t *testing.T) {
	ix, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	ctx := context.Background()
	if _, err := ix.Search(ctx, "  ", 5); err == nil {
		t.Fatalf("Search(empty query): expected error")
	}
	if _, err := ix.Search(ctx, "x", 0); err == nil {
		t.Fatalf("Search(k=0): expected error")
	}

	// Searching an empty index is fine, just returns nothing.
	results, err := ix.Search(ctx, "anything at all", 5)
	if err != nil {
		t.Fatalf("Search(empty index): %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search(empty index): got %v", results)
	}
}

func TestIndex_OpenValidation(t *testing.T) {
	if _, err := Open(":memory:", nil); err == nil {
		t.Fatalf("Open(nil embedder): expected error")
	}
}

func TestIndex_MemoryConcurrentSearch(t *testing.T) {
	ix, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	ctx := context.Background()
	if err := ix.Build(ctx, testCorpus(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Every searcher must see the same database even though the driver
	// hands out fresh connections under load.
	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				results, err := ix.Search(ctx, "volcano in Antarctica", 2)
				if err != nil {
					errs <- err
					return
				}
				if len(results) == 0 || results[0].DocID != "c-1" {
					errs <- fmt.Errorf("top result: %+v", results)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		t.Fatalf("concurrent Search: %v", err)
	}
}

func TestIndex_MemoryIndexesIndependent(t *testing.T) {
	ctx := context.Background()

	a, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	b, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	if err := a.Build(ctx, testCorpus(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	n, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("second memory index: got %d docs want 0", n)
	}
}

func TestIndex_VectorOnlySearch(t *testing.T) {
	ix, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	ix.ftsEnabled = false

	ctx := context.Background()
	if err := ix.Build(ctx, testCorpus(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	results, err := ix.Search(ctx, "volcano in Antarctica", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].DocID != "c-1" {
		t.Fatalf("top result: %+v", results)
	}
}

func TestIndex_UpdateRefreshesFTS(t *testing.T) {
	ix, err := Open(":memory:", testEmbedder())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	if !ix.ftsEnabled {
		t.Skip("sqlite built without fts5")
	}

	ctx := context.Background()
	if err := ix.Build(ctx, testCorpus(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := ix.db.ExecContext(ctx,
		"UPDATE docs SET abstract = ? WHERE doc_id = ?",
		"The quokka is a wallaby-sized macropod.", "c-2"); err != nil {
		t.Fatalf("update: %v", err)
	}

	hits, err := ix.ftsSearch(ctx, "wallaby-sized", 5)
	if err != nil {
		t.Fatalf("ftsSearch: %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != "c-2" {
		t.Fatalf("hits: %+v", hits)
	}
	if hits, err = ix.ftsSearch(ctx, "Australia", 5); err != nil {
		t.Fatalf("ftsSearch: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("stale hits after update: %+v", hits)
	}
}

func TestMissingFTS5(t *testing.T) {
	t.Parallel()

	if missingFTS5(nil) {
		t.Fatalf("missingFTS5(nil): got true")
	}
	if missingFTS5(errors.New("disk I/O error")) {
		t.Fatalf("unrelated error: got true")
	}
	if !missingFTS5(errors.New("no such module: fts5")) {
		t.Fatalf("fts5 error: got false")
	}
}

func TestFTSQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"mount erebus", `"mount" OR "erebus"`},
		{`weird "quoted" input`, `"weird" OR "quoted" OR "input"`},
		{"   ", ""},
		{`NEAR(a b)`, `"NEAR(a" OR "b)"`},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Fatalf("ftsQuery(%q): got %q want %q", tt.in, got, tt.want)
		}
	}
}
