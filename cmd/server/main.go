package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wikifactslab/wikifacts/api"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/leaderboard"
	"github.com/wikifactslab/wikifacts/internal/store"
)

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr

	loadConfig   = config.Load
	openStore    = store.Open
	newCatalog   = api.NewCatalog
	newScheduler = api.NewScheduler
	newServer    = api.NewServer
	runServer    = (*api.Server).Run

	leaderboardNewStore = leaderboard.NewStore
)

func main() {
	osExit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(stderrWriter)

	var addr string
	var configPath string
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.StringVar(&configPath, "config", config.DefaultPath, "path to config file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	defer func() { _ = st.Close() }()

	lb, err := openLeaderboardStore(cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	defer func() { _ = lb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The server still serves runs and the leaderboard when no dataset
	// has been built yet.
	catalog, err := newCatalog(ctx, cfg.Dataset.Dir, cfg.Scrape.Languages)
	if err != nil {
		fmt.Fprintf(stderrWriter, "dataset catalog unavailable: %v\n", err)
		catalog = nil
	} else {
		defer func() { _ = catalog.Close() }()
	}

	sched, err := newScheduler(cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	if err := sched.Start(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	defer sched.Stop()

	srv, err := newServer(cfg, st, lb, catalog, sched)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	if err := runServer(srv, addr); err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	return 0
}

func openLeaderboardStore(cfg *config.Config) (*leaderboard.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("leaderboard: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = store.DefaultSQLitePath
		}
		return leaderboardNewStore(path)
	case "memory":
		return leaderboardNewStore(":memory:")
	default:
		return nil, fmt.Errorf("leaderboard: unsupported type %q", storageType)
	}
}
