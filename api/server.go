package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wikifactslab/wikifacts/internal/config"
	"github.com/wikifactslab/wikifacts/internal/leaderboard"
	"github.com/wikifactslab/wikifacts/internal/store"
)

type Server struct {
	router  *gin.Engine
	store   store.Store
	config  *config.Config
	lbStore *leaderboard.Store
	catalog *Catalog
	sched   *Scheduler
}

// NewServer wires the HTTP surface. catalog and sched may be nil; the
// endpoints that need them report the missing piece instead of panicking.
func NewServer(cfg *config.Config, st store.Store, lbStore *leaderboard.Store, catalog *Catalog, sched *Scheduler) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:  r,
		store:   st,
		config:  cfg,
		lbStore: lbStore,
		catalog: catalog,
		sched:   sched,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
