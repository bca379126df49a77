// Package query exposes read-only accessors over the purgatory store: holding
// lookups, collection reputation and flagging, run history and statistics.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/purgatory-reaper/pkg/app/errors"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
)

// Listing limits.
const (
	DefaultListLimit    = 50
	MaxListLimit        = 500
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
	MaxBatchCheck       = 100
)

// Store is the read side of the purgatory store.
type Store interface {
	GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error)
	ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error)
	Stats(ctx context.Context) (*purgatory.Stats, error)
	GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error)
	ListRunLogs(ctx context.Context, limit int) ([]*purgatory.RunLog, error)
}

// Check is the flag verdict for one item type.
type Check struct {
	ItemType string
	reputation.Flag
}

// Service defines the read accessors. None of them have side effects.
type Service interface {
	GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error)
	ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error)
	GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	IsFlagged(ctx context.Context, itemType string) (*Check, error)
	CheckBatch(ctx context.Context, itemTypes []string) ([]*Check, error)
	ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error)
	GetRunHistory(ctx context.Context, limit int) ([]*purgatory.RunLog, error)
	Stats(ctx context.Context) (*purgatory.Stats, error)
}

type queryService struct {
	store      Store
	thresholds reputation.Thresholds
	logger     *zap.Logger
}

// NewService creates a query service evaluating flags against th.
func NewService(store Store, th reputation.Thresholds, logger *zap.Logger) Service {
	return &queryService{
		store:      store,
		thresholds: th,
		logger:     logger,
	}
}

func (s *queryService) GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, apperrors.BadRequestError(nil, "item id is required")
	}
	h, err := s.store.GetHolding(ctx, itemID)
	if errors.Is(err, purgatorystore.ErrHoldingNotFound) {
		return nil, apperrors.ResourceNotFoundError(err, "holding not found")
	}
	if err != nil {
		return nil, storeError(fmt.Errorf("get holding %s: %w", itemID, err))
	}
	return h, nil
}

func (s *queryService) ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error) {
	if strings.TrimSpace(depositor) == "" {
		return nil, apperrors.BadRequestError(nil, "depositor is required")
	}
	hs, err := s.store.ListByDepositor(ctx, depositor)
	if err != nil {
		return nil, storeError(fmt.Errorf("list holdings of %s: %w", depositor, err))
	}
	return hs, nil
}

func (s *queryService) GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	rep, err := s.reputation(ctx, itemType)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, apperrors.ResourceNotFoundError(purgatorystore.ErrReputationNotFound, "no reports for item type")
	}
	return rep, nil
}

// IsFlagged never reports a missing collection as an error; it is evaluated
// as having no reports.
func (s *queryService) IsFlagged(ctx context.Context, itemType string) (*Check, error) {
	rep, err := s.reputation(ctx, itemType)
	if err != nil {
		return nil, err
	}
	return &Check{ItemType: itemType, Flag: reputation.Evaluate(rep, s.thresholds)}, nil
}

func (s *queryService) CheckBatch(ctx context.Context, itemTypes []string) ([]*Check, error) {
	if len(itemTypes) == 0 {
		return nil, apperrors.BadRequestError(nil, "at least one item type is required")
	}
	if len(itemTypes) > MaxBatchCheck {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("at most %d item types per request", MaxBatchCheck))
	}
	out := make([]*Check, 0, len(itemTypes))
	for _, t := range itemTypes {
		c, err := s.IsFlagged(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *queryService) ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error) {
	if !order.Valid() {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("unknown ordering %q", order))
	}
	reps, err := s.store.ListReputations(ctx, order, clamp(limit, DefaultListLimit, MaxListLimit))
	if err != nil {
		return nil, storeError(fmt.Errorf("list reputations by %s: %w", order, err))
	}
	return reps, nil
}

func (s *queryService) GetRunHistory(ctx context.Context, limit int) ([]*purgatory.RunLog, error) {
	runs, err := s.store.ListRunLogs(ctx, clamp(limit, DefaultHistoryLimit, MaxHistoryLimit))
	if err != nil {
		return nil, storeError(fmt.Errorf("list run logs: %w", err))
	}
	return runs, nil
}

func (s *queryService) Stats(ctx context.Context) (*purgatory.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, storeError(fmt.Errorf("holding stats: %w", err))
	}
	return st, nil
}

// reputation returns nil without error when the item type has no reports.
func (s *queryService) reputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	if strings.TrimSpace(itemType) == "" {
		return nil, apperrors.BadRequestError(nil, "item type is required")
	}
	rep, err := s.store.GetReputation(ctx, itemType)
	if errors.Is(err, purgatorystore.ErrReputationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(fmt.Errorf("get reputation of %s: %w", itemType, err))
	}
	return rep, nil
}

// clamp applies the default to non-positive limits and caps the rest at ceiling.
func clamp(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}

// storeError hides store failures behind a categorised error. Timeouts are
// reported as such so callers can retry.
func storeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.TimeoutError(err)
	}
	return apperrors.GeneralError(err)
}
