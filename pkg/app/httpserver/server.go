// Package httpserver runs the HTTP surface of each process: the operational
// endpoints (/health, /ready, /metrics) and any API routes mounted on the
// same router.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
)

// NewServer builds an http.Server for handler from the server section.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// ServeAndWait listens on srv.Addr and serves until ctx is cancelled or the
// server fails, then shuts down gracefully within shutdownTimeout.
func ServeAndWait(ctx context.Context, logger *zap.Logger, srv *http.Server, shutdownTimeout time.Duration) error {
	if srv == nil {
		return fmt.Errorf("nil http server")
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return Serve(ctx, logger, srv, ln, shutdownTimeout)
}

// Serve is ServeAndWait on an existing listener.
//
// Returns a non-nil error if:
//   - the server exits unexpectedly (not ErrServerClosed), or
//   - shutdown fails.
func Serve(ctx context.Context, logger *zap.Logger, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", ln.Addr().String()))
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("HTTP server error", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		return fmt.Errorf("http shutdown: %w", err)
	}

	// If server crashed unexpectedly, return that after shutdown attempt
	if runErr != nil {
		return fmt.Errorf("http server failed: %w", runErr)
	}

	logger.Info("HTTP server stopped")
	return nil
}
