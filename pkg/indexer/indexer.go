// Package indexer reconciles the custody module's ledger events into the
// purgatory store. Events are applied one page at a time in ledger order and
// the cursor is persisted after every page, so a restart resumes after the
// last processed event and replays at most one page.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/purgatory-reaper/internal/metrics"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
	"github.com/chainsafe/purgatory-reaper/pkg/schedule"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

// Ledger is the event feed the indexer reads.
type Ledger interface {
	QueryEvents(ctx context.Context, filter sui.ModuleFilter, cursor *sui.EventID, limit int) (*sui.EventPage, error)
}

// Scorer counts a newly recorded disposal report.
type Scorer interface {
	RecordReport(ctx context.Context, store reputation.Store, report *purgatory.DisposalReport) (*purgatory.CollectionReputation, error)
}

// Config holds indexer settings.
type Config struct {
	Filter             sui.ModuleFilter
	CursorName         string
	PageSize           int
	PollInterval       time.Duration
	ErrorBackoff       time.Duration
	BackfillRPS        float64
	BackfillMaxRetries int
	// Start is used when no cursor has been persisted yet.
	Start      purgatory.Cursor
	ServiceFee int64
}

// PollResult summarises one page.
type PollResult struct {
	Events  int
	Applied int
	Noop    int
	Skipped int
	Failed  int
	HasMore bool
}

// BackfillSummary summarises a backfill pass.
type BackfillSummary struct {
	Pages   int
	Events  int
	Applied int
	Skipped int
	Failed  int
	Cursor  purgatory.Cursor
}

// Indexer applies custody events to the store.
type Indexer struct {
	cfg    Config
	ledger Ledger
	store  purgatorystore.Store
	scorer Scorer
	clock  schedule.Clock
	logger *zap.Logger

	ready atomic.Bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithClock replaces the wall clock used for sleeps.
func WithClock(c schedule.Clock) Option {
	return func(ix *Indexer) { ix.clock = c }
}

// New creates an indexer.
func New(cfg Config, ledger Ledger, store purgatorystore.Store, scorer Scorer, logger *zap.Logger, opts ...Option) *Indexer {
	ix := &Indexer{
		cfg:    cfg,
		ledger: ledger,
		store:  store,
		scorer: scorer,
		clock:  schedule.RealClock(),
		logger: logger.With(zap.String("component", "indexer")),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Ready reports whether the live loop has completed a poll.
func (ix *Indexer) Ready() bool { return ix.ready.Load() }

// PollOnce fetches and applies one page after cursor, persists the advanced
// cursor and returns it. On an empty page or a ledger error the input cursor
// is returned unchanged.
func (ix *Indexer) PollOnce(ctx context.Context, cursor purgatory.Cursor) (purgatory.Cursor, PollResult, error) {
	var after *sui.EventID
	if !cursor.IsZero() {
		after = &sui.EventID{TxDigest: cursor.TxDigest, EventSeq: cursor.EventSeq}
	}

	page, err := ix.ledger.QueryEvents(ctx, ix.cfg.Filter, after, ix.cfg.PageSize)
	if err != nil {
		metrics.IndexerPolls.WithLabelValues("error").Inc()
		return cursor, PollResult{}, fmt.Errorf("query events after %s: %w", cursor, err)
	}
	if len(page.Data) == 0 {
		metrics.IndexerPolls.WithLabelValues("empty").Inc()
		return cursor, PollResult{}, nil
	}
	metrics.IndexerPolls.WithLabelValues("events").Inc()

	res := PollResult{Events: len(page.Data), HasMore: page.HasNextPage}
	for i := range page.Data {
		ix.processEvent(ctx, &page.Data[i], &res)
	}

	last := page.Data[len(page.Data)-1].ID
	next := cursor
	next.TxDigest = last.TxDigest
	next.EventSeq = last.EventSeq
	next.EventsProcessed += int64(len(page.Data))

	if err := ix.store.SaveCursor(ctx, &next); err != nil {
		metrics.ErrorsTotal.WithLabelValues("indexer", "save_cursor").Inc()
		return cursor, res, fmt.Errorf("save cursor %s: %w", next.Name, err)
	}
	metrics.IndexerEventsCursor.WithLabelValues(next.Name).Set(float64(next.EventsProcessed))

	ix.logger.Info("Processed event page",
		zap.String("cursor", next.String()),
		zap.Int("events", res.Events),
		zap.Int("applied", res.Applied),
		zap.Int("noop", res.Noop),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))

	return next, res, nil
}

func (ix *Indexer) processEvent(ctx context.Context, raw *sui.Event, res *PollResult) {
	fields := []zap.Field{
		zap.String("tx_digest", raw.ID.TxDigest),
		zap.String("event_seq", raw.ID.EventSeq),
		zap.String("type", raw.Type),
	}

	ev, err := Decode(raw, ix.cfg.ServiceFee)
	switch {
	case errors.Is(err, ErrUnknownEventKind):
		ix.logger.Debug("Skipping unknown event", fields...)
		metrics.EventsProcessed.WithLabelValues(raw.Name(), string(outcomeSkipped)).Inc()
		res.Skipped++
		return
	case err != nil:
		ix.logger.Error("Skipping malformed event", append(fields, zap.Error(err))...)
		metrics.EventsProcessed.WithLabelValues(raw.Name(), string(outcomeSkipped)).Inc()
		res.Skipped++
		return
	}

	out, err := ix.apply(ctx, ev)
	if err != nil {
		ix.logger.Error("Failed to apply event", append(fields, zap.String("item_id", ev.Item()), zap.Error(err))...)
		metrics.ErrorsTotal.WithLabelValues("indexer", ev.Kind()).Inc()
	}
	metrics.EventsProcessed.WithLabelValues(ev.Kind(), string(out)).Inc()

	switch out {
	case outcomeApplied:
		res.Applied++
	case outcomeNoop:
		res.Noop++
	case outcomeSkipped:
		res.Skipped++
	case outcomeFailed:
		res.Failed++
	}
}

// LoadCursor returns the persisted cursor named name, or the configured start
// position when none exists.
func (ix *Indexer) LoadCursor(ctx context.Context, name string) (purgatory.Cursor, error) {
	c, err := ix.store.GetCursor(ctx, name)
	if errors.Is(err, purgatorystore.ErrCursorNotFound) {
		start := ix.cfg.Start
		start.Name = name
		return start, nil
	}
	if err != nil {
		return purgatory.Cursor{}, err
	}
	return *c, nil
}

// Run polls until ctx is cancelled. Ledger and store errors are logged and
// retried after the error backoff; Run returns nil on cancellation.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.logger.Info("Starting indexer",
		zap.String("package", ix.cfg.Filter.Package),
		zap.String("module", ix.cfg.Filter.Module),
		zap.Duration("poll_interval", ix.cfg.PollInterval))

	var cursor purgatory.Cursor
	for {
		c, err := ix.LoadCursor(ctx, ix.cfg.CursorName)
		if err == nil {
			cursor = c
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		ix.logger.Warn("Failed to load cursor, retrying", zap.Error(err), zap.Duration("backoff", ix.cfg.ErrorBackoff))
		if schedule.Sleep(ctx, ix.clock, ix.cfg.ErrorBackoff) != nil {
			return nil
		}
	}
	ix.logger.Info("Resuming from cursor", zap.String("cursor", cursor.String()))

	for {
		next, res, err := ix.PollOnce(ctx, cursor)
		if ctx.Err() != nil {
			ix.logger.Info("Indexer stopped", zap.String("cursor", cursor.String()))
			return nil
		}

		wait := ix.cfg.PollInterval
		switch {
		case err != nil:
			ix.logger.Warn("Poll failed, backing off", zap.Error(err), zap.Duration("backoff", ix.cfg.ErrorBackoff))
			wait = ix.cfg.ErrorBackoff
		case res.Events > 0 && res.HasMore:
			wait = 0
		}
		if err == nil {
			ix.ready.Store(true)
		}
		cursor = next

		if wait > 0 {
			if schedule.Sleep(ctx, ix.clock, wait) != nil {
				ix.logger.Info("Indexer stopped", zap.String("cursor", cursor.String()))
				return nil
			}
		}
	}
}

// BackfillCursorName is the cursor backfill progress is saved under, so the
// live cursor is never moved backwards.
func BackfillCursorName(live string) string { return live + "-backfill" }

// Backfill replays the event history from the first event to the present with
// the same per-event logic as Run. Pages are throttled by a token bucket and
// ledger errors are retried up to the configured limit. With restart false a
// previous backfill resumes from its saved cursor.
func (ix *Indexer) Backfill(ctx context.Context, restart bool) (BackfillSummary, error) {
	name := BackfillCursorName(ix.cfg.CursorName)
	cursor := purgatory.Cursor{Name: name}
	if !restart {
		c, err := ix.store.GetCursor(ctx, name)
		switch {
		case err == nil:
			cursor = *c
		case !errors.Is(err, purgatorystore.ErrCursorNotFound):
			return BackfillSummary{}, fmt.Errorf("load backfill cursor: %w", err)
		}
	}

	limit := rate.Inf
	if ix.cfg.BackfillRPS > 0 {
		limit = rate.Limit(ix.cfg.BackfillRPS)
	}
	limiter := rate.NewLimiter(limit, 1)
	summary := BackfillSummary{Cursor: cursor}
	ix.logger.Info("Starting backfill", zap.String("cursor", cursor.String()), zap.Float64("rps", ix.cfg.BackfillRPS))

	retries := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}

		next, res, err := ix.PollOnce(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			retries++
			if retries > ix.cfg.BackfillMaxRetries {
				return summary, fmt.Errorf("backfill aborted after %d retries: %w", retries-1, err)
			}
			ix.logger.Warn("Backfill page failed, retrying",
				zap.Int("attempt", retries), zap.Error(err))
			if err := schedule.Sleep(ctx, ix.clock, ix.cfg.ErrorBackoff); err != nil {
				return summary, err
			}
			continue
		}
		retries = 0

		if res.Events == 0 {
			break
		}
		cursor = next
		summary.Pages++
		summary.Events += res.Events
		summary.Applied += res.Applied
		summary.Skipped += res.Skipped + res.Noop
		summary.Failed += res.Failed
		summary.Cursor = cursor

		if summary.Pages%10 == 0 {
			ix.logger.Info("Backfill progress", zap.Int("events", summary.Events), zap.String("cursor", cursor.String()))
		}
		if !res.HasMore {
			break
		}
	}

	ix.logger.Info("Backfill complete",
		zap.Int("pages", summary.Pages),
		zap.Int("events", summary.Events),
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
