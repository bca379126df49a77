package reaper

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	AddressValue          string
	SubmitTransactionFunc func(ctx context.Context, tx sui.TxBody, gasBudget uint64) (*sui.TxResult, error)
	GetBalanceFunc        func(ctx context.Context, owner string) (*sui.Balance, error)

	mu        sync.Mutex
	submitted []sui.TxBody
}

func (m *MockLedger) Address() string { return m.AddressValue }

func (m *MockLedger) PurgeCall(itemID, itemType string) sui.MoveCall {
	return sui.MoveCall{
		Package:       "0xpkg",
		Module:        "core",
		Function:      "purge",
		TypeArguments: []string{itemType},
		Arguments:     []any{"0xglobal", itemID, "0x6"},
	}
}

func (m *MockLedger) SubmitTransaction(ctx context.Context, tx sui.TxBody, gasBudget uint64) (*sui.TxResult, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, tx)
	n := len(m.submitted)
	m.mu.Unlock()

	if m.SubmitTransactionFunc != nil {
		return m.SubmitTransactionFunc(ctx, tx, gasBudget)
	}
	return &sui.TxResult{Success: true, Digest: fmt.Sprintf("TX%d", n), GasUsed: 1000}, nil
}

func (m *MockLedger) GetBalance(ctx context.Context, owner string) (*sui.Balance, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, owner)
	}
	return &sui.Balance{Owner: owner, CoinType: sui.SuiCoinType}, nil
}

func (m *MockLedger) submissions() []sui.TxBody {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sui.TxBody(nil), m.submitted...)
}

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	Store
	ListExpiredFunc  func(ctx context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error)
	InsertRunLogFunc func(ctx context.Context, run *purgatory.RunLog) error
}

func (s *failingStore) ListExpired(ctx context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error) {
	if s.ListExpiredFunc != nil {
		return s.ListExpiredFunc(ctx, thresholdMs, limit)
	}
	return s.Store.ListExpired(ctx, thresholdMs, limit)
}

func (s *failingStore) InsertRunLog(ctx context.Context, run *purgatory.RunLog) error {
	if s.InsertRunLogFunc != nil {
		return s.InsertRunLogFunc(ctx, run)
	}
	return s.Store.InsertRunLog(ctx, run)
}
