// Package purgatorystore persists holdings, disposal reports, collection
// reputation, reaper runs and indexer cursors.
package purgatorystore

import (
	"context"
	"errors"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

var (
	// ErrHoldingNotFound is returned when no holding matches the item id.
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrReputationNotFound is returned when a collection has no reputation row.
	ErrReputationNotFound = errors.New("collection reputation not found")
	// ErrCursorNotFound is returned when no cursor with the given name was saved.
	ErrCursorNotFound = errors.New("cursor not found")
)

// HoldingStore covers the custody state of items. The Mark* transitions only
// apply to holdings still HELD and report whether a row changed.
type HoldingStore interface {
	InsertHolding(ctx context.Context, h *purgatory.Holding) (bool, error)
	MarkRestored(ctx context.Context, itemID string) (bool, error)
	MarkPurged(ctx context.Context, itemID, txID string) (bool, error)
	MarkPurgedBatch(ctx context.Context, itemIDs []string, txID string) (int, error)
	GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error)
	ListExpired(ctx context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error)
	ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error)
	Stats(ctx context.Context) (*purgatory.Stats, error)
}

// ReportStore appends disposal reports, at most one per item.
type ReportStore interface {
	InsertDisposalReport(ctx context.Context, r *purgatory.DisposalReport) (bool, error)
	CountReporters(ctx context.Context, itemType string) (int64, error)
}

// ReputationStore keeps one counter row per collection.
type ReputationStore interface {
	EnsureReputation(ctx context.Context, itemType string) error
	GetReputationForUpdate(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	SaveReputation(ctx context.Context, rep *purgatory.CollectionReputation) error
	GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error)
}

// RunLogStore appends and lists reaper run records.
type RunLogStore interface {
	InsertRunLog(ctx context.Context, r *purgatory.RunLog) error
	ListRunLogs(ctx context.Context, limit int) ([]*purgatory.RunLog, error)
}

// CursorStore persists named event cursors.
type CursorStore interface {
	GetCursor(ctx context.Context, name string) (*purgatory.Cursor, error)
	SaveCursor(ctx context.Context, c *purgatory.Cursor) error
}

// Store is the full persistence surface. RunInTx runs fn against a
// transaction-scoped Store; fn's error rolls the transaction back.
type Store interface {
	HoldingStore
	ReportStore
	ReputationStore
	RunLogStore
	CursorStore
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
