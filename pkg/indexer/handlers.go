package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/internal/metrics"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

// outcome of applying one event
type outcome string

const (
	outcomeApplied outcome = "applied"
	outcomeNoop    outcome = "noop"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

func (ix *Indexer) apply(ctx context.Context, ev Event) (outcome, error) {
	switch e := ev.(type) {
	case Deposited:
		return ix.handleDeposited(ctx, e)
	case Restored:
		return ix.handleRestored(ctx, e)
	case Purged:
		return ix.handlePurged(ctx, e)
	default:
		ix.logger.Debug("Ignoring unhandled event", zap.String("kind", ev.Kind()))
		return outcomeSkipped, nil
	}
}

// handleDeposited writes the holding and its disposal report in one
// transaction. The reputation counters move only when the report row is new,
// so a replayed deposit changes nothing.
func (ix *Indexer) handleDeposited(ctx context.Context, e Deposited) (outcome, error) {
	holding := &purgatory.Holding{
		ItemID:           e.ItemID,
		ItemType:         e.ItemType,
		Depositor:        e.Depositor,
		DepositTimestamp: e.Timestamp,
		FeePaid:          e.Fee,
		DisposalReason:   e.Reason,
		Status:           purgatory.StatusHeld,
	}
	report := &purgatory.DisposalReport{
		ItemID:          e.ItemID,
		ItemType:        e.ItemType,
		ReporterAddress: e.Depositor,
		Reason:          e.Reason,
		LedgerTxID:      e.TxDigest,
		Timestamp:       e.Timestamp,
	}

	var counted bool
	err := ix.store.RunInTx(ctx, func(ctx context.Context, tx purgatorystore.Store) error {
		if _, err := tx.InsertHolding(ctx, holding); err != nil {
			return err
		}
		inserted, err := tx.InsertDisposalReport(ctx, report)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		if _, err := ix.scorer.RecordReport(ctx, tx, report); err != nil {
			return err
		}
		counted = true
		return nil
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("index deposit %s: %w", e.ItemID, err)
	}

	if !counted {
		ix.logger.Debug("Deposit already indexed", zap.String("item_id", e.ItemID))
		return outcomeNoop, nil
	}

	metrics.ReputationReports.WithLabelValues(e.Reason.String()).Inc()
	ix.logger.Info("Indexed deposit",
		zap.String("item_id", e.ItemID),
		zap.String("item_type", e.ItemType),
		zap.String("reason", e.Reason.String()))
	if e.Reason == purgatory.ReasonMalicious {
		ix.logger.Warn("Malicious report for collection",
			zap.String("item_type", e.ItemType),
			zap.String("reporter", e.Depositor))
	}
	return outcomeApplied, nil
}

func (ix *Indexer) handleRestored(ctx context.Context, e Restored) (outcome, error) {
	changed, err := ix.store.MarkRestored(ctx, e.ItemID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("index restore %s: %w", e.ItemID, err)
	}
	if !changed {
		ix.logger.Debug("Restore ignored, holding unknown or already terminal", zap.String("item_id", e.ItemID))
		return outcomeNoop, nil
	}
	ix.logger.Info("Marked holding restored", zap.String("item_id", e.ItemID))
	return outcomeApplied, nil
}

func (ix *Indexer) handlePurged(ctx context.Context, e Purged) (outcome, error) {
	changed, err := ix.store.MarkPurged(ctx, e.ItemID, e.TxDigest)
	if err != nil {
		return outcomeFailed, fmt.Errorf("index purge %s: %w", e.ItemID, err)
	}
	if !changed {
		ix.logger.Debug("Purge ignored, holding unknown or already terminal", zap.String("item_id", e.ItemID))
		return outcomeNoop, nil
	}
	ix.logger.Info("Marked holding purged", zap.String("item_id", e.ItemID), zap.String("tx_digest", e.TxDigest))
	return outcomeApplied, nil
}
