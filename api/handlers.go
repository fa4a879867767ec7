package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/store"
)

type datasetSummary struct {
	Language  string `json:"language"`
	Documents int    `json:"documents"`
	Queries   int    `json:"queries"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListDatasets(c *gin.Context) {
	if s == nil || s.catalog == nil {
		respondError(c, http.StatusInternalServerError, errors.New("dataset catalog not configured"))
		return
	}

	langs := s.catalog.Languages()
	out := make([]datasetSummary, 0, len(langs))
	for _, lang := range langs {
		ds, ok := s.catalog.Get(lang)
		if !ok {
			continue
		}
		out = append(out, datasetSummary{
			Language:  lang,
			Documents: len(ds.Corpus),
			Queries:   len(ds.Queries),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDataset(c *gin.Context) {
	ds, lang, ok := s.datasetFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, datasetSummary{
		Language:  lang,
		Documents: len(ds.Corpus),
		Queries:   len(ds.Queries),
	})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	ds, _, ok := s.datasetFor(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing document id"))
		return
	}

	doc, ok := ds.Document(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("document %q not found", id))
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleListQueries(c *gin.Context) {
	ds, _, ok := s.datasetFor(c)
	if !ok {
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 100)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	date := strings.TrimSpace(c.Query("date")) // YYYY-MM fact_date filter
	out := make([]*dataset.Query, 0, limit)
	for _, q := range ds.Queries {
		if q == nil {
			continue
		}
		if date != "" && q.Metadata.FactDate != date {
			continue
		}
		out = append(out, q)
		if len(out) >= limit {
			break
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.RunFilter{
		Model:   strings.TrimSpace(c.Query("model")),
		Dataset: strings.TrimSpace(c.Query("dataset")),
		Mode:    strings.TrimSpace(c.Query("mode")),
		Since:   since,
		Until:   until,
		Limit:   limit,
	}

	runs, err := s.store.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunAnswers(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	answers, err := s.store.GetAnswers(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s == nil || s.lbStore == nil {
		respondError(c, http.StatusInternalServerError, errors.New("leaderboard store not configured"))
		return
	}

	ds := strings.TrimSpace(c.Query("dataset"))
	mode := strings.TrimSpace(c.Query("mode"))
	if ds == "" || mode == "" {
		respondError(c, http.StatusBadRequest, errors.New("dataset and mode are required"))
		return
	}

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	entries, err := s.lbStore.GetLeaderboard(c.Request.Context(), ds, mode, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleGetModelHistory(c *gin.Context) {
	if s == nil || s.lbStore == nil {
		respondError(c, http.StatusInternalServerError, errors.New("leaderboard store not configured"))
		return
	}

	model := strings.TrimSpace(c.Query("model"))
	ds := strings.TrimSpace(c.Query("dataset"))
	if model == "" || ds == "" {
		respondError(c, http.StatusBadRequest, errors.New("model and dataset are required"))
		return
	}

	entries, err := s.lbStore.GetModelHistory(c.Request.Context(), model, ds)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleScrapeStatus(c *gin.Context) {
	if s == nil || s.sched == nil {
		respondError(c, http.StatusInternalServerError, errors.New("scheduler not configured"))
		return
	}
	st := s.sched.Status()
	sort.Strings(st.Languages)
	c.JSON(http.StatusOK, st)
}

// datasetFor resolves the :lang route param against the catalog, writing
// the error response itself when resolution fails.
func (s *Server) datasetFor(c *gin.Context) (*dataset.Dataset, string, bool) {
	if s == nil || s.catalog == nil {
		respondError(c, http.StatusInternalServerError, errors.New("dataset catalog not configured"))
		return nil, "", false
	}

	lang := strings.ToLower(strings.TrimSpace(c.Param("lang")))
	if lang == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing language"))
		return nil, "", false
	}

	ds, ok := s.catalog.Get(lang)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("dataset %q not found", lang))
		return nil, "", false
	}
	return ds, lang, true
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}
