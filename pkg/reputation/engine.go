package reputation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

// Store is the counter storage the engine needs. Callers pass a
// transaction-scoped implementation so the report insert and the counter
// update commit together.
type Store interface {
	EnsureReputation(ctx context.Context, itemType string) error
	GetReputationForUpdate(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	CountReporters(ctx context.Context, itemType string) (int64, error)
	SaveReputation(ctx context.Context, rep *purgatory.CollectionReputation) error
}

// Engine records disposal reports into collection reputation rows.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a scoring engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
	}
}

// RecordReport counts one report against its collection. The row is created
// on the first report for a type and locked for the read-modify-write after.
func (e *Engine) RecordReport(ctx context.Context, store Store, report *purgatory.DisposalReport) (*purgatory.CollectionReputation, error) {
	if err := store.EnsureReputation(ctx, report.ItemType); err != nil {
		return nil, fmt.Errorf("ensure reputation %s: %w", report.ItemType, err)
	}

	current, err := store.GetReputationForUpdate(ctx, report.ItemType)
	if err != nil {
		return nil, fmt.Errorf("lock reputation %s: %w", report.ItemType, err)
	}
	// A freshly ensured row has no reports yet; treat it as new so
	// FirstReportedAt is stamped.
	if current != nil && current.TotalReports == 0 {
		current.FirstReportedAt = nil
	}

	next := Apply(current, report.ItemType, report.Reason, e.now())

	reporters, err := store.CountReporters(ctx, report.ItemType)
	if err != nil {
		return nil, fmt.Errorf("count reporters %s: %w", report.ItemType, err)
	}
	next.UniqueReporters = reporters

	if err := store.SaveReputation(ctx, next); err != nil {
		return nil, fmt.Errorf("save reputation %s: %w", report.ItemType, err)
	}

	e.logger.Debug("Reputation updated",
		zap.String("item_type", next.ItemType),
		zap.String("reason", report.Reason.String()),
		zap.Int64("total_reports", next.TotalReports),
		zap.Float64("score", next.ReputationScore))

	return next, nil
}
