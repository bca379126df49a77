package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 60 * time.Second
	readinessTimeout      = 2 * time.Second
)

// ReadyFunc reports nil when the process can serve its purpose.
type ReadyFunc func(ctx context.Context) error

// RouterOptions selects the operational endpoints of a router.
type RouterOptions struct {
	Ready   ReadyFunc
	Metrics bool
}

// NewRouter returns a chi router with the common middleware stack and the
// operational endpoints. /ready answers 503 with the readiness error until
// opts.Ready returns nil; without a ReadyFunc it mirrors /health.
func NewRouter(logger *zap.Logger, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				logger.Debug("Readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	return r
}
