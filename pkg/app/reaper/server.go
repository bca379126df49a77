// Package reaper implements app.Runner for the reclamation process.
package reaper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/purgatory-reaper/pkg/app/errors"
	apphttp "github.com/chainsafe/purgatory-reaper/pkg/app/http"
	"github.com/chainsafe/purgatory-reaper/pkg/app/httpserver"
	"github.com/chainsafe/purgatory-reaper/pkg/config"
	"github.com/chainsafe/purgatory-reaper/pkg/pgutil"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/reaper"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

// Mode selects what the reaper process does.
type Mode int

const (
	// ModeSchedule runs passes on the configured interval until shutdown.
	ModeSchedule Mode = iota
	// ModeOnce runs a single pass and exits.
	ModeOnce
	// ModeBalance prints the wallet balance and exits.
	ModeBalance
)

// Server holds configuration for the reaper process.
type Server struct {
	cfg  *config.Config
	mode Mode
	out  io.Writer
}

// NewServer initializes a new reaper Server.
func NewServer(cfg *config.Config, mode Mode) *Server {
	return &Server{cfg: cfg, mode: mode, out: os.Stdout}
}

// Run executes the selected mode. ModeSchedule blocks until an OS shutdown
// signal is received and the in-flight pass has finished.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

func (s *Server) run(ctx context.Context) error {
	cfg := s.cfg
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging, "reaper")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := sui.NewFromAppConfig(ctx, &cfg.Sui, true, sui.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initialize sui client: %w", err)
	}
	defer client.Close()

	if s.mode == ModeBalance {
		return s.printBalance(ctx, reaper.New(reaperConfig(cfg), client, nil, logger))
	}

	db := pgutil.OpenLogged(ctx, &cfg.Database, logger)
	defer func() { _ = db.Close() }()

	r := reaper.New(reaperConfig(cfg), client, purgatorystore.NewStore(db), logger)

	if s.mode == ModeOnce {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Reaper.RunTimeout)
		defer cancel()
		run, err := r.RunOnce(runCtx)
		if err != nil {
			return fmt.Errorf("reaper run: %w", err)
		}
		_, _ = fmt.Fprintf(s.out, "run %s: %s, scanned %d, purged %d, failed %d\n",
			run.RunID, run.Status, run.ItemsScanned, run.ItemsPurged, run.ItemsFailed)
		return nil
	}

	if b, err := r.Balance(ctx); err != nil {
		logger.Warn("Failed to read reaper balance", zap.Error(err))
	} else {
		logger.Info("Reaper wallet", zap.String("address", b.Owner), zap.String("balance_sui", b.Sui().String()))
	}

	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	router := newRouter(r, logger, cfg.Monitoring.Enabled)
	srvErr := httpserver.ServeAndWait(ctx, logger, httpserver.NewServer(cfg.Server, router), cfg.Shutdown.Timeout)

	stop()
	if err := <-done; err != nil {
		return err
	}
	return srvErr
}

func (s *Server) printBalance(ctx context.Context, r *reaper.Reaper) error {
	b, err := r.Balance(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%s: %s SUI (%s MIST)\n", b.Owner, b.Sui().String(), b.Mist.String())
	return err
}

// balancer is the part of reaper.Reaper the HTTP surface uses.
type balancer interface {
	Balance(ctx context.Context) (*sui.Balance, error)
}

type balanceResponse struct {
	Address  string `json:"address"`
	CoinType string `json:"coin_type"`
	Mist     string `json:"mist"`
	Sui      string `json:"sui"`
}

func newRouter(b balancer, logger *zap.Logger, metrics bool) chi.Router {
	r := httpserver.NewRouter(logger, httpserver.RouterOptions{Metrics: metrics})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/balance", apphttp.HandleError(func(w http.ResponseWriter, req *http.Request) error {
			bal, err := b.Balance(req.Context())
			if err != nil {
				return apperrors.DependencyError(err, "ledger balance unavailable")
			}
			return apphttp.WriteJSON(w, http.StatusOK, &balanceResponse{
				Address:  bal.Owner,
				CoinType: bal.CoinType,
				Mist:     bal.Mist.String(),
				Sui:      bal.Sui().String(),
			})
		}))
	})
	return r
}

func reaperConfig(cfg *config.Config) reaper.Config {
	return reaper.Config{
		RetentionPeriod: cfg.Reaper.RetentionPeriod,
		FetchBatchSize:  cfg.Reaper.FetchBatchSize,
		SubmitBatchSize: cfg.Reaper.SubmitBatchSize,
		GasBudget:       cfg.Reaper.GasBudget,
		Interval:        cfg.Reaper.Interval,
		BatchDelay:      cfg.Reaper.BatchDelay,
		RunTimeout:      cfg.Reaper.RunTimeout,
		RequestTimeout:  cfg.Sui.RequestTimeout,
	}
}
