package store

import (
	"fmt"
	"strings"

	"github.com/wikifactslab/wikifacts/internal/config"
)

// DefaultSQLitePath is where runs land when storage.path is not configured.
const DefaultSQLitePath = "data/wikifacts.db"

// Open builds a Store from the storage section of the config. Type
// "memory" is sqlite backed by :memory:, handy for tests and dry runs.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}

	switch t := strings.ToLower(strings.TrimSpace(cfg.Storage.Type)); t {
	case "", "sqlite":
		if path := strings.TrimSpace(cfg.Storage.Path); path != "" {
			return NewSQLiteStore(path)
		}
		return NewSQLiteStore(DefaultSQLitePath)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("store: unsupported type %q", t)
	}
}
