package main

import (
	"github.com/google/uuid"
	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/dyk"
	"github.com/wikifactslab/wikifacts/internal/index"
	"github.com/wikifactslab/wikifacts/internal/leaderboard"
	"github.com/wikifactslab/wikifacts/internal/llm"
	"github.com/wikifactslab/wikifacts/internal/store"
)

// Seams for tests: commands call through these so the slow or networked
// pieces can be stubbed.
var (
	loadRawFacts = dyk.LoadRawFacts
	saveRawFacts = dyk.SaveRawFacts

	loadDataset        = dataset.Load
	openStore          = store.Open
	openIndex          = index.Open
	embedderFromConfig = llm.EmbedderFromConfig

	leaderboardNewStore = leaderboard.NewStore

	newRunID = uuid.NewString
)
