package query

import (
	"context"
	"errors"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

var errNotMocked = errors.New("not mocked")

// MockStore is a mock implementation of Store
type MockStore struct {
	GetHoldingFunc      func(ctx context.Context, itemID string) (*purgatory.Holding, error)
	ListByDepositorFunc func(ctx context.Context, depositor string) ([]*purgatory.Holding, error)
	StatsFunc           func(ctx context.Context) (*purgatory.Stats, error)
	GetReputationFunc   func(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error)
	ListReputationsFunc func(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error)
	ListRunLogsFunc     func(ctx context.Context, limit int) ([]*purgatory.RunLog, error)
}

func (m *MockStore) GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error) {
	if m.GetHoldingFunc != nil {
		return m.GetHoldingFunc(ctx, itemID)
	}
	return nil, errNotMocked
}

func (m *MockStore) ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error) {
	if m.ListByDepositorFunc != nil {
		return m.ListByDepositorFunc(ctx, depositor)
	}
	return nil, errNotMocked
}

func (m *MockStore) Stats(ctx context.Context) (*purgatory.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return nil, errNotMocked
}

func (m *MockStore) GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	if m.GetReputationFunc != nil {
		return m.GetReputationFunc(ctx, itemType)
	}
	return nil, errNotMocked
}

func (m *MockStore) ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error) {
	if m.ListReputationsFunc != nil {
		return m.ListReputationsFunc(ctx, order, limit)
	}
	return nil, errNotMocked
}

func (m *MockStore) ListRunLogs(ctx context.Context, limit int) ([]*purgatory.RunLog, error) {
	if m.ListRunLogsFunc != nil {
		return m.ListRunLogsFunc(ctx, limit)
	}
	return nil, errNotMocked
}
