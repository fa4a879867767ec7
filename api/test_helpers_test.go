package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/wikifactslab/wikifacts/internal/store"
)

type fakeStore struct {
	SaveRunFunc    func(ctx context.Context, run *store.RunRecord) error
	GetRunFunc     func(ctx context.Context, id string) (*store.RunRecord, error)
	ListRunsFunc   func(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error)
	GetAnswersFunc func(ctx context.Context, runID string) ([]*store.AnswerRecord, error)
	CloseFunc      func() error
}

func (s *fakeStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	if s.SaveRunFunc != nil {
		return s.SaveRunFunc(ctx, run)
	}
	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.GetRunFunc != nil {
		return s.GetRunFunc(ctx, id)
	}
	return nil, store.ErrRunNotFound
}

func (s *fakeStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
	if s.ListRunsFunc != nil {
		return s.ListRunsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) GetAnswers(ctx context.Context, runID string) ([]*store.AnswerRecord, error) {
	if s.GetAnswersFunc != nil {
		return s.GetAnswersFunc(ctx, runID)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

// writeDatasetDir writes a small two-split dataset under root/<lang>.
func writeDatasetDir(t *testing.T, root, lang string) string {
	t.Helper()

	dir := filepath.Join(root, lang)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	corpusLines := `{"id":"c-0","text":"Mount Erebus is a volcano in Antarctica.\n\nIt has a lava lake.","abstract":"Mount Erebus is a volcano in Antarctica.","metadata":{"url":"https://en.wikipedia.org/wiki/Mount_Erebus","language":"en"}}
{"id":"c-1","text":"The quokka is a small macropod.","abstract":"The quokka is a small macropod.","metadata":{"url":"https://en.wikipedia.org/wiki/Quokka","language":"en"}}
`
	queryLines := `{"id":"q-0","text":"Mount Erebus has a lava lake.","linked articles":["c-0"],"relevant articles":["c-0"],"metadata":{"fact_date":"2025-06","language":"en"}}
{"id":"q-1","text":"Quokkas are macropods.","linked articles":["c-1"],"relevant articles":["c-1"],"metadata":{"fact_date":"2025-07","language":"en"}}
`
	if err := os.WriteFile(filepath.Join(dir, "corpus.jsonl"), []byte(corpusLines), 0o644); err != nil {
		t.Fatalf("WriteFile corpus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "queries.jsonl"), []byte(queryLines), 0o644); err != nil {
		t.Fatalf("WriteFile queries: %v", err)
	}
	return dir
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	root := t.TempDir()
	writeDatasetDir(t, root, "en")

	ctx, cancel := context.WithCancel(context.Background())
	cat, err := NewCatalog(ctx, root, []string{"en"})
	if err != nil {
		cancel()
		t.Fatalf("NewCatalog: %v", err)
	}
	t.Cleanup(func() {
		_ = cat.Close()
		cancel()
	})
	return cat
}

func newTestRouter(t *testing.T, s *Server) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("WIKIFACTS_API_KEY", "")
	t.Setenv("WIKIFACTS_DISABLE_AUTH", "true")

	if s.router == nil {
		s.router = gin.New()
	}
	if err := s.registerRoutes(); err != nil {
		t.Fatalf("registerRoutes: %v", err)
	}
	return s.router
}
