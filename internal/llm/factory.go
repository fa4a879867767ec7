package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wikifactslab/wikifacts/internal/config"
)

func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "":
			continue
		case "claude", "anthropic":
			r.Register(NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model, pcfg.EmbeddingModel))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

func DefaultProviderFromConfig(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if name == "" {
		name = "openai"
	}
	if p, ok := reg.Get(name); ok {
		return p, nil
	}

	if len(reg.providers) == 1 {
		for _, p := range reg.providers {
			return p, nil
		}
	}

	available := reg.Names()
	sort.Strings(available)
	return nil, fmt.Errorf("llm: default provider %q not configured (available: %s)", name, strings.Join(available, ", "))
}

// EmbedderFromConfig returns the embedding backend. Only the openai
// provider implements embeddings, so it is required here even when
// another provider answers the completions.
func EmbedderFromConfig(cfg *config.Config) (Embedder, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	pcfg, ok := cfg.LLM.Providers["openai"]
	if !ok {
		return nil, errors.New("llm: embeddings require an openai provider entry")
	}
	return NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model, pcfg.EmbeddingModel), nil
}
