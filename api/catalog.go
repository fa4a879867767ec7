package api

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wikifactslab/wikifacts/internal/dataset"
)

// Catalog serves the loaded dataset per language. Each language directory
// sits under the dataset root (data/dataset/en, data/dataset/de, ...) and
// is watched for rewrites, so a refresh scrape shows up without a restart.
type Catalog struct {
	mu       sync.RWMutex
	watchers map[string]*dataset.Watcher
}

// NewCatalog opens a watcher for every requested language. Languages whose
// directory does not exist yet are skipped; a catalog with zero languages
// is an error since nothing could be served.
func NewCatalog(ctx context.Context, root string, languages []string) (*Catalog, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("api: empty dataset root")
	}
	if ctx == nil {
		return nil, errors.New("api: nil context")
	}

	c := &Catalog{watchers: make(map[string]*dataset.Watcher, len(languages))}
	var firstErr error
	for _, lang := range languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		w, err := dataset.NewWatcher(ctx, filepath.Join(root, lang), nil)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("api: dataset %s: %w", lang, err)
			}
			continue
		}
		c.watchers[lang] = w
	}
	if len(c.watchers) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, errors.New("api: no dataset languages configured")
	}
	return c, nil
}

// Get returns the current dataset for lang.
func (c *Catalog) Get(lang string) (*dataset.Dataset, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	w, ok := c.watchers[strings.ToLower(strings.TrimSpace(lang))]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ds := w.Dataset()
	return ds, ds != nil
}

// Languages lists the served languages in sorted order.
func (c *Catalog) Languages() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]string, 0, len(c.watchers))
	for lang := range c.watchers {
		out = append(out, lang)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Close stops all watchers.
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, w := range c.watchers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
