package main

import (
	"context"
	"strings"
	"testing"

	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/llm"
)

func TestIndexCommand(t *testing.T) {
	saveCLIGlobals(t)

	cfgPath := writeTestConfig(t, "storage:\n  type: memory\n")

	loadDataset = func(ctx context.Context, dir string) (*dataset.Dataset, error) {
		return testDataset(), nil
	}
	embedderFromConfig = func(cfg *config.Config) (llm.Embedder, error) {
		return staticEmbedder{}, nil
	}

	out, err := executeCommand(t, "index", "--config", cfgPath, "--path", ":memory:")
	if err != nil {
		t.Fatalf("index: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "holds 1 documents") {
		t.Fatalf("output: %q", out)
	}
}

func TestIndexCommand_MissingPath(t *testing.T) {
	saveCLIGlobals(t)

	cfgPath := writeTestConfig(t, "storage:\n  type: memory\n")

	_, err := executeCommand(t, "index", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "index path") {
		t.Fatalf("expected index path error, got %v", err)
	}
}
