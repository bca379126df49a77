// Package api implements app.Runner for the read-only query API process.
package api

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/pkg/app/httpserver"
	"github.com/chainsafe/purgatory-reaper/pkg/config"
	"github.com/chainsafe/purgatory-reaper/pkg/pgutil"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/query"
)

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

// run serves until ctx is cancelled. An unreachable database only fails
// /ready and the queries that need it.
func (s *Server) run(ctx context.Context) error {
	cfg := s.cfg

	logger, err := config.NewLogger(cfg.Logging, "api")
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db := pgutil.OpenLogged(ctx, &cfg.Database, logger)
	defer func() { _ = db.Close() }()

	svc := query.NewLog(query.NewService(purgatorystore.NewStore(db), cfg.Reputation, logger), logger)
	router := setupRouter(svc, db.PingContext, cfg.Monitoring.Enabled, logger)

	return httpserver.ServeAndWait(ctx, logger, httpserver.NewServer(cfg.Server, router), cfg.Shutdown.Timeout)
}

func setupRouter(svc query.Service, ready httpserver.ReadyFunc, metrics bool, logger *zap.Logger) chi.Router {
	r := httpserver.NewRouter(logger, httpserver.RouterOptions{Ready: ready, Metrics: metrics})
	r.Route("/api/v1", func(r chi.Router) {
		query.RegisterRoutes(r, svc, logger)
	})
	return r
}
