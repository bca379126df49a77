// Package indexer implements app.Runner for the event indexer process.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/pkg/app/httpserver"
	"github.com/chainsafe/purgatory-reaper/pkg/config"
	"github.com/chainsafe/purgatory-reaper/pkg/indexer"
	"github.com/chainsafe/purgatory-reaper/pkg/pgutil"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

var errNotReady = errors.New("indexer has not completed a poll")

// Mode selects what the indexer process does.
type Mode int

const (
	// ModeLive follows the ledger until shutdown.
	ModeLive Mode = iota
	// ModeBackfill replays history once and exits.
	ModeBackfill
)

// Server holds configuration for the indexer process.
type Server struct {
	cfg     *config.Config
	mode    Mode
	restart bool
}

// NewServer initializes a new indexer Server. restart only applies to
// ModeBackfill and discards the saved backfill position.
func NewServer(cfg *config.Config, mode Mode, restart bool) *Server {
	return &Server{cfg: cfg, mode: mode, restart: restart}
}

// Run starts the indexer. In live mode it blocks until an OS shutdown signal
// is received and serves the operational endpoints meanwhile.
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

	logger, err := config.NewLogger(cfg.Logging, "indexer")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db := pgutil.OpenLogged(ctx, &cfg.Database, logger)
	defer func() { _ = db.Close() }()

	client, err := sui.NewFromAppConfig(ctx, &cfg.Sui, false, sui.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initialize sui client: %w", err)
	}
	defer client.Close()

	ix := indexer.New(
		indexerConfig(cfg, client.ModuleFilter()),
		client,
		purgatorystore.NewStore(db),
		reputation.NewEngine(logger),
		logger,
	)

	if s.mode == ModeBackfill {
		summary, err := ix.Backfill(ctx, s.restart)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		logger.Info("Backfill finished",
			zap.Int("events", summary.Events),
			zap.String("cursor", summary.Cursor.String()))
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx) }()

	router := httpserver.NewRouter(logger, httpserver.RouterOptions{
		Ready: func(context.Context) error {
			if !ix.Ready() {
				return errNotReady
			}
			return nil
		},
		Metrics: cfg.Monitoring.Enabled,
	})
	srvErr := httpserver.ServeAndWait(ctx, logger, httpserver.NewServer(cfg.Server, router), cfg.Shutdown.Timeout)

	// The HTTP server can fail before a shutdown signal; stop the loop too.
	stop()
	return errors.Join(srvErr, <-done)
}

func indexerConfig(cfg *config.Config, filter sui.ModuleFilter) indexer.Config {
	return indexer.Config{
		Filter:             filter,
		CursorName:         cfg.Indexer.CursorName,
		PageSize:           cfg.Indexer.PageSize,
		PollInterval:       cfg.Indexer.PollInterval,
		ErrorBackoff:       cfg.Indexer.ErrorBackoff,
		BackfillRPS:        cfg.Indexer.BackfillRPS,
		BackfillMaxRetries: cfg.Indexer.BackfillMaxRetries,
		Start: purgatory.Cursor{
			TxDigest: cfg.Indexer.StartTxDigest,
			EventSeq: cfg.Indexer.StartEventSeq,
		},
		ServiceFee: cfg.Indexer.ServiceFee,
	}
}
