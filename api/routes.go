package api

import (
	"errors"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	// Scrape target for collectors, outside the key check.
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("WIKIFACTS_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("WIKIFACTS_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set WIKIFACTS_API_KEY or set WIKIFACTS_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/datasets", s.handleListDatasets)
	api.GET("/datasets/:lang", s.handleGetDataset)
	api.GET("/datasets/:lang/documents/:id", s.handleGetDocument)
	api.GET("/datasets/:lang/queries", s.handleListQueries)

	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/answers", s.handleGetRunAnswers)

	api.GET("/leaderboard", s.handleGetLeaderboard)
	api.GET("/leaderboard/history", s.handleGetModelHistory)

	api.GET("/scrape/status", s.handleScrapeStatus)

	return nil
}
