// Package reaper reclaims holdings whose retention period has elapsed. Each
// run lists the oldest expired holdings, submits them to the ledger in
// fixed-size purge transactions and records the outcome as a run log.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/internal/metrics"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/schedule"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

var (
	errInterrupted = errors.New("run interrupted by shutdown")
	errTimedOut    = errors.New("run exceeded its timeout")
)

// Ledger submits reclamation transactions.
type Ledger interface {
	Address() string
	PurgeCall(itemID, itemType string) sui.MoveCall
	SubmitTransaction(ctx context.Context, tx sui.TxBody, gasBudget uint64) (*sui.TxResult, error)
	GetBalance(ctx context.Context, owner string) (*sui.Balance, error)
}

// Store is the part of the purgatory store the reaper uses.
type Store interface {
	ListExpired(ctx context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error)
	MarkPurgedBatch(ctx context.Context, itemIDs []string, txID string) (int, error)
	InsertRunLog(ctx context.Context, run *purgatory.RunLog) error
}

// Config holds reaper settings.
type Config struct {
	RetentionPeriod time.Duration
	FetchBatchSize  int
	SubmitBatchSize int
	GasBudget       uint64
	Interval        time.Duration
	BatchDelay      time.Duration
	RunTimeout      time.Duration
	// RequestTimeout bounds the submission and bookkeeping of a batch that is
	// already in flight when the run is cancelled.
	RequestTimeout time.Duration
}

// Reaper runs reclamation passes.
type Reaper struct {
	cfg    Config
	ledger Ledger
	store  Store
	clock  schedule.Clock
	logger *zap.Logger
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithClock replaces the wall clock used for retention and delays.
func WithClock(c schedule.Clock) Option {
	return func(r *Reaper) { r.clock = c }
}

// New creates a reaper.
func New(cfg Config, ledger Ledger, store Store, logger *zap.Logger, opts ...Option) *Reaper {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	r := &Reaper{
		cfg:    cfg,
		ledger: ledger,
		store:  store,
		clock:  schedule.RealClock(),
		logger: logger.With(zap.String("component", "reaper")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs one reclamation pass and persists its run log. The
// returned error is non-nil only when the expired holdings could not be
// listed or the run log could not be written; batch failures are reported
// through the run log counters.
func (r *Reaper) RunOnce(ctx context.Context) (*purgatory.RunLog, error) {
	run := purgatory.NewRunLog(r.clock.Now())
	threshold := run.RunTimestamp.Add(-r.cfg.RetentionPeriod).UnixMilli()

	r.logger.Info("Starting reaper run",
		zap.String("run_id", run.RunID.String()),
		zap.Int64("threshold_ms", threshold))

	items, err := r.store.ListExpired(ctx, threshold, r.cfg.FetchBatchSize)
	if err != nil {
		err = fmt.Errorf("list expired holdings: %w", err)
		run.Abort(err, r.clock.Now())
		r.logger.Error("Reaper run aborted", zap.String("run_id", run.RunID.String()), zap.Error(err))
		if perr := r.record(ctx, run); perr != nil {
			return run, errors.Join(err, perr)
		}
		return run, err
	}
	run.ItemsScanned = len(items)

	var (
		gasUsed     int64
		interrupted error
	)
	for i, batch := range chunk(items, r.cfg.SubmitBatchSize) {
		if i > 0 {
			if err := schedule.Sleep(ctx, r.clock, r.cfg.BatchDelay); err != nil {
				interrupted = interruption(err)
				// Unattempted items stay HELD and count as failed so that
				// scanned = purged + failed holds for every run.
				remaining := len(items) - i*r.cfg.SubmitBatchSize
				run.ItemsFailed += remaining
				metrics.ReaperItems.WithLabelValues("failed").Add(float64(remaining))
				r.logger.Warn("Stopping reaper run before next batch",
					zap.String("run_id", run.RunID.String()),
					zap.Int("remaining", remaining),
					zap.Error(interrupted))
				break
			}
		}
		r.processBatch(ctx, run, batch, &gasUsed)
	}

	if len(run.TxIDs) > 0 {
		run.GasUsed = &gasUsed
	}
	run.Finish(r.clock.Now())
	if interrupted != nil {
		run.ErrorMessage = interrupted.Error()
	}

	r.logger.Info("Reaper run complete",
		zap.String("run_id", run.RunID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("scanned", run.ItemsScanned),
		zap.Int("purged", run.ItemsPurged),
		zap.Int("failed", run.ItemsFailed),
		zap.Int64("gas_used", gasUsed),
		zap.Int64("duration_ms", run.ExecutionTimeMs))

	return run, r.record(ctx, run)
}

// processBatch submits one purge transaction. The batch is detached from
// cancellation so a shutdown never abandons a submitted transaction before its
// outcome is recorded; it is still bounded by the request timeout.
func (r *Reaper) processBatch(ctx context.Context, run *purgatory.RunLog, batch []*purgatory.Holding, gasUsed *int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RequestTimeout)
	defer cancel()

	ids := make([]string, len(batch))
	tx := sui.TxBody{Calls: make([]sui.MoveCall, len(batch))}
	for i, h := range batch {
		ids[i] = h.ItemID
		tx.Calls[i] = r.ledger.PurgeCall(h.ItemID, h.ItemType)
	}

	res, err := r.ledger.SubmitTransaction(ctx, tx, r.cfg.GasBudget)
	switch {
	case err != nil:
		r.failBatch(run, ids, zap.Error(err))
		return
	case !res.Success:
		r.failBatch(run, ids, zap.String("tx_digest", res.Digest), zap.String("effects_error", res.Error))
		return
	}

	run.ItemsPurged += len(batch)
	run.TxIDs = append(run.TxIDs, res.Digest)
	*gasUsed += res.GasUsed
	metrics.ReaperItems.WithLabelValues("purged").Add(float64(len(batch)))
	metrics.ReaperGasUsed.Observe(float64(res.GasUsed))

	// The ledger already committed the purge. A failed status update is left for
	// the indexer, which applies the matching ItemPurged events.
	n, err := r.store.MarkPurgedBatch(ctx, ids, res.Digest)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("reaper", "mark_purged").Inc()
		r.logger.Error("Failed to mark purged holdings",
			zap.String("tx_digest", res.Digest),
			zap.Strings("item_ids", ids),
			zap.Error(err))
	}

	r.logger.Info("Purge batch confirmed",
		zap.String("tx_digest", res.Digest),
		zap.Int("items", len(batch)),
		zap.Int("marked", n),
		zap.Int64("gas_used", res.GasUsed))
}

func (r *Reaper) failBatch(run *purgatory.RunLog, ids []string, fields ...zap.Field) {
	run.ItemsFailed += len(ids)
	metrics.ReaperItems.WithLabelValues("failed").Add(float64(len(ids)))
	metrics.ErrorsTotal.WithLabelValues("reaper", "submit").Inc()
	r.logger.Warn("Purge batch failed, items stay held for the next run",
		append(fields, zap.Int("items", len(ids)), zap.String("first_item", ids[0]))...)
}

// record persists the run log even when ctx is already cancelled.
func (r *Reaper) record(ctx context.Context, run *purgatory.RunLog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RequestTimeout)
	defer cancel()

	metrics.ReaperRuns.WithLabelValues(string(run.Status)).Inc()
	metrics.ReaperRunDuration.Observe(float64(run.ExecutionTimeMs) / 1000)

	if err := r.store.InsertRunLog(ctx, run); err != nil {
		metrics.ErrorsTotal.WithLabelValues("reaper", "insert_run_log").Inc()
		return fmt.Errorf("insert run log %s: %w", run.RunID, err)
	}
	return nil
}

// Start runs a pass immediately and then every configured interval until ctx
// is cancelled. A tick that arrives while a pass is still running is dropped.
// Start returns after the in-flight pass completes.
func (r *Reaper) Start(ctx context.Context) error {
	r.logger.Info("Starting reaper scheduler",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("retention", r.cfg.RetentionPeriod),
		zap.String("address", r.ledger.Address()))

	trigger := schedule.NewTrigger(func(ctx context.Context) {
		if r.cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
			defer cancel()
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Reaper run failed", zap.Error(err))
		}
	})

	schedule.Every(ctx, r.clock, r.cfg.Interval, trigger, func() {
		metrics.ReaperRunsSkipped.Inc()
		r.logger.Warn("Skipping scheduled reaper run, previous run still in flight")
	})

	r.logger.Info("Reaper scheduler stopped")
	return nil
}

// Balance returns the reaper wallet balance.
func (r *Reaper) Balance(ctx context.Context) (*sui.Balance, error) {
	addr := r.ledger.Address()
	if addr == "" {
		return nil, sui.ErrNoSigner
	}
	b, err := r.ledger.GetBalance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", addr, err)
	}
	metrics.ReaperBalance.Set(b.Sui().InexactFloat64())
	return b, nil
}

func interruption(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errTimedOut
	}
	return errInterrupted
}

func chunk(items []*purgatory.Holding, size int) [][]*purgatory.Holding {
	if size <= 0 {
		size = len(items)
	}
	var out [][]*purgatory.Holding
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
