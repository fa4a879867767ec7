package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/store"
)

func saveCLIGlobals(t *testing.T) {
	t.Helper()

	oldOsExit := osExit
	oldStderr := stderrWriter
	oldLoadRawFacts := loadRawFacts
	oldSaveRawFacts := saveRawFacts
	oldLoadDataset := loadDataset
	oldOpenStore := openStore
	oldOpenIndex := openIndex
	oldEmbedder := embedderFromConfig
	oldLeaderboardNewStore := leaderboardNewStore
	oldNewRunID := newRunID
	oldScrapeLanguage := scrapeLanguage
	oldBuildCorpus := buildCorpus

	t.Cleanup(func() {
		osExit = oldOsExit
		stderrWriter = oldStderr
		loadRawFacts = oldLoadRawFacts
		saveRawFacts = oldSaveRawFacts
		loadDataset = oldLoadDataset
		openStore = oldOpenStore
		openIndex = oldOpenIndex
		embedderFromConfig = oldEmbedder
		leaderboardNewStore = oldLeaderboardNewStore
		newRunID = oldNewRunID
		scrapeLanguage = oldScrapeLanguage
		buildCorpus = oldBuildCorpus
	})
}

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type capturingStore struct {
	saved []*store.RunRecord
}

func (s *capturingStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	s.saved = append(s.saved, run)
	return nil
}

func (s *capturingStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	return nil, store.ErrRunNotFound
}

func (s *capturingStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
	return nil, nil
}

func (s *capturingStore) GetAnswers(ctx context.Context, runID string) ([]*store.AnswerRecord, error) {
	return nil, nil
}

func (s *capturingStore) Close() error { return nil }

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Corpus: map[string]*dataset.Document{
			"c-0": {
				ID:       "c-0",
				Text:     "Mount Erebus is a volcano in Antarctica.\n\nIt has a lava lake.",
				Abstract: "Mount Erebus is a volcano in Antarctica.",
			},
		},
		Queries: []*dataset.Query{
			{ID: "q-0", Text: "Mount Erebus has a lava lake.", LinkedArticles: []string{"c-0"}},
			{ID: "q-1", Text: "Mount Erebus is in Norway."},
		},
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	want := map[string]bool{
		"scrape":      false,
		"build":       false,
		"index":       false,
		"run":         false,
		"leaderboard": false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}

	if f := root.PersistentFlags().Lookup("config"); f == nil {
		t.Fatalf("missing --config flag")
	}
}

func TestMain_QueriesFailedExitsSilently(t *testing.T) {
	saveCLIGlobals(t)

	var stderr bytes.Buffer
	stderrWriter = &stderr

	exitCode := -1
	osExit = func(code int) { exitCode = code }

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"wikifacts", "run", "--config", filepath.Join(t.TempDir(), "missing.yaml")}

	main()

	if exitCode != 1 {
		t.Fatalf("exit: got %d want 1", exitCode)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected config load error on stderr")
	}
}

func TestResolveLanguages(t *testing.T) {
	cfg := config.Default()
	cfg.Scrape.Languages = []string{"en", "de"}

	if got := resolveLanguages(nil, cfg); len(got) != 2 || got[0] != "en" {
		t.Fatalf("config languages: got %v", got)
	}
	if got := resolveLanguages([]string{" RU ", "", "uk"}, cfg); len(got) != 2 || got[0] != "ru" || got[1] != "uk" {
		t.Fatalf("flag languages: got %v", got)
	}
}

func TestResolveProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "k", Model: "gpt-4o-mini"},
		"claude": {APIKey: "k"},
	}

	p, model, err := resolveProvider(cfg, "", "")
	if err != nil {
		t.Fatalf("resolveProvider: %v", err)
	}
	if p.Name() != "openai" || model != "gpt-4o-mini" {
		t.Fatalf("default: got %s %s", p.Name(), model)
	}

	p, model, err = resolveProvider(cfg, "anthropic", "claude-x")
	if err != nil {
		t.Fatalf("resolveProvider(anthropic): %v", err)
	}
	if p.Name() != "claude" || model != "claude-x" {
		t.Fatalf("anthropic alias: got %s %s", p.Name(), model)
	}

	if _, _, err := resolveProvider(cfg, "mistral", ""); err == nil {
		t.Fatalf("expected error for unconfigured provider")
	}
	if _, _, err := resolveProvider(nil, "", ""); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestResolveProvider_AnthropicConfigKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"anthropic": {APIKey: "k", Model: "claude-x"},
	}

	// The providers map key and the --provider flag accept either spelling.
	for _, flag := range []string{"anthropic", "claude"} {
		p, model, err := resolveProvider(cfg, flag, "")
		if err != nil {
			t.Fatalf("resolveProvider(%q): %v", flag, err)
		}
		if p.Name() != "claude" || model != "claude-x" {
			t.Fatalf("resolveProvider(%q): got %s %s", flag, p.Name(), model)
		}
	}
}
