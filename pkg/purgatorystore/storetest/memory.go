// Package storetest provides an in-memory purgatorystore.Store for tests of
// the components built on top of the store.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

type state struct {
	holdings    map[string]purgatory.Holding
	reports     map[string]purgatory.DisposalReport
	reputations map[string]purgatory.CollectionReputation
	runs        []purgatory.RunLog
	cursors     map[string]purgatory.Cursor
}

func newState() state {
	return state{
		holdings:    map[string]purgatory.Holding{},
		reports:     map[string]purgatory.DisposalReport{},
		reputations: map[string]purgatory.CollectionReputation{},
		cursors:     map[string]purgatory.Cursor{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.reports {
		c.reports[k] = v
	}
	for k, v := range s.reputations {
		c.reputations[k] = v
	}
	for k, v := range s.cursors {
		c.cursors[k] = v
	}
	c.runs = append(c.runs, s.runs...)
	return c
}

// Memory is a purgatorystore.Store backed by maps. Conditional updates follow
// the same status = HELD guard as the Postgres store.
//
// Writes outside a transaction wait for any open RunInTx to finish, so a
// rollback only discards the transaction's own writes. Reads never wait and
// may observe uncommitted state.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	now  func() time.Time

	// FailMarkPurgedBatch, when set, is returned by MarkPurgedBatch.
	FailMarkPurgedBatch error
}

var _ purgatorystore.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{st: newState(), now: time.Now}
}

// RunInTx runs fn against a view of m whose writes do not take txMu, and
// restores the snapshot taken before fn when it fails.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx purgatorystore.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(ctx, &memTx{m}); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) insertHolding(_ context.Context, h *purgatory.Holding) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.st.holdings[h.ItemID]; ok {
		return false, nil
	}
	row := *h
	if row.Status == "" {
		row.Status = purgatory.StatusHeld
	}
	now := m.now()
	row.CreatedAt, row.UpdatedAt = now, now
	m.st.holdings[h.ItemID] = row
	return true, nil
}

func (m *Memory) markRestored(_ context.Context, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.st.holdings[itemID]
	if !ok || row.Status.Terminal() {
		return false, nil
	}
	now := m.now()
	row.Status = purgatory.StatusRestored
	row.RestoredAt = &now
	row.UpdatedAt = now
	m.st.holdings[itemID] = row
	return true, nil
}

func (m *Memory) markPurged(ctx context.Context, itemID, txID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPurgedLocked(itemID, txID), nil
}

func (m *Memory) markPurgedBatch(_ context.Context, itemIDs []string, txID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailMarkPurgedBatch != nil {
		return 0, m.FailMarkPurgedBatch
	}
	n := 0
	for _, id := range itemIDs {
		if m.markPurgedLocked(id, txID) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) markPurgedLocked(itemID, txID string) bool {
	row, ok := m.st.holdings[itemID]
	if !ok || row.Status.Terminal() {
		return false
	}
	now := m.now()
	row.Status = purgatory.StatusPurged
	row.PurgeTxID = txID
	row.PurgedAt = &now
	row.UpdatedAt = now
	m.st.holdings[itemID] = row
	return true
}

func (m *Memory) GetHolding(_ context.Context, itemID string) (*purgatory.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.st.holdings[itemID]
	if !ok {
		return nil, purgatorystore.ErrHoldingNotFound
	}
	return &row, nil
}

func (m *Memory) ListExpired(_ context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*purgatory.Holding
	for _, row := range m.st.holdings {
		if row.Expired(thresholdMs) {
			h := row
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepositTimestamp != out[j].DepositTimestamp {
			return out[i].DepositTimestamp < out[j].DepositTimestamp
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListByDepositor(_ context.Context, depositor string) ([]*purgatory.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*purgatory.Holding
	for _, row := range m.st.holdings {
		if row.Depositor == depositor {
			h := row
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepositTimestamp != out[j].DepositTimestamp {
			return out[i].DepositTimestamp > out[j].DepositTimestamp
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (*purgatory.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &purgatory.Stats{}
	for _, row := range m.st.holdings {
		switch row.Status {
		case purgatory.StatusHeld:
			stats.Held++
		case purgatory.StatusRestored:
			stats.Restored++
		case purgatory.StatusPurged:
			stats.Purged++
		}
		stats.Total++
		stats.FeesPaid += row.FeePaid
	}
	return stats, nil
}

func (m *Memory) insertDisposalReport(_ context.Context, r *purgatory.DisposalReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.st.reports[r.ItemID]; ok {
		return false, nil
	}
	row := *r
	row.CreatedAt = m.now()
	m.st.reports[r.ItemID] = row
	return true, nil
}

func (m *Memory) CountReporters(_ context.Context, itemType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]struct{}{}
	for _, r := range m.st.reports {
		if r.ItemType == itemType {
			seen[r.ReporterAddress] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (m *Memory) ensureReputation(_ context.Context, itemType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.st.reputations[itemType]; ok {
		return nil
	}
	now := m.now()
	m.st.reputations[itemType] = purgatory.CollectionReputation{
		ItemType:        itemType,
		ReputationScore: 100,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}

func (m *Memory) GetReputationForUpdate(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	return m.GetReputation(ctx, itemType)
}

func (m *Memory) GetReputation(_ context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.st.reputations[itemType]
	if !ok {
		return nil, purgatorystore.ErrReputationNotFound
	}
	return &row, nil
}

func (m *Memory) saveReputation(_ context.Context, rep *purgatory.CollectionReputation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.st.reputations[rep.ItemType]
	if !ok {
		return nil
	}
	row := *rep
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = m.now()
	m.st.reputations[rep.ItemType] = row
	return nil
}

func (m *Memory) ListReputations(_ context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var key func(r *purgatory.CollectionReputation) float64
	switch order {
	case purgatory.OrderMostMalicious:
		key = func(r *purgatory.CollectionReputation) float64 { return -float64(r.MaliciousCount) }
	case purgatory.OrderMostSpam:
		key = func(r *purgatory.CollectionReputation) float64 { return -float64(r.SpamCount) }
	case purgatory.OrderLowestReputation:
		key = func(r *purgatory.CollectionReputation) float64 { return r.ReputationScore }
	default:
		return nil, fmt.Errorf("unknown reputation order %q", order)
	}

	out := make([]*purgatory.CollectionReputation, 0, len(m.st.reputations))
	for _, row := range m.st.reputations {
		r := row
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			return ki < kj
		}
		if out[i].TotalReports != out[j].TotalReports {
			return out[i].TotalReports > out[j].TotalReports
		}
		return out[i].ItemType < out[j].ItemType
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) insertRunLog(_ context.Context, r *purgatory.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := *r
	row.TxIDs = append([]string(nil), r.TxIDs...)
	m.st.runs = append(m.st.runs, row)
	return nil
}

func (m *Memory) ListRunLogs(_ context.Context, limit int) ([]*purgatory.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*purgatory.RunLog, 0, len(m.st.runs))
	for i := len(m.st.runs) - 1; i >= 0; i-- {
		r := m.st.runs[i]
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RunTimestamp.After(out[j].RunTimestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetCursor(_ context.Context, name string) (*purgatory.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.st.cursors[name]
	if !ok {
		return nil, purgatorystore.ErrCursorNotFound
	}
	return &c, nil
}

func (m *Memory) saveCursor(_ context.Context, c *purgatory.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := *c
	row.UpdatedAt = m.now()
	m.st.cursors[c.Name] = row
	return nil
}

// Runs returns every persisted run log in insertion order.
func (m *Memory) Runs() []purgatory.RunLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]purgatory.RunLog(nil), m.st.runs...)
}

// Reports returns the number of disposal reports stored.
func (m *Memory) Reports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.reports)
}

// Writes outside RunInTx.

func (m *Memory) InsertHolding(ctx context.Context, h *purgatory.Holding) (bool, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.insertHolding(ctx, h)
}

func (m *Memory) MarkRestored(ctx context.Context, itemID string) (bool, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.markRestored(ctx, itemID)
}

func (m *Memory) MarkPurged(ctx context.Context, itemID, txID string) (bool, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.markPurged(ctx, itemID, txID)
}

func (m *Memory) MarkPurgedBatch(ctx context.Context, itemIDs []string, txID string) (int, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.markPurgedBatch(ctx, itemIDs, txID)
}

func (m *Memory) InsertDisposalReport(ctx context.Context, r *purgatory.DisposalReport) (bool, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.insertDisposalReport(ctx, r)
}

func (m *Memory) EnsureReputation(ctx context.Context, itemType string) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.ensureReputation(ctx, itemType)
}

func (m *Memory) SaveReputation(ctx context.Context, rep *purgatory.CollectionReputation) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.saveReputation(ctx, rep)
}

func (m *Memory) InsertRunLog(ctx context.Context, r *purgatory.RunLog) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.insertRunLog(ctx, r)
}

func (m *Memory) SaveCursor(ctx context.Context, c *purgatory.Cursor) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.saveCursor(ctx, c)
}

// memTx is the Store handed to RunInTx callbacks. Reads go straight to the
// Memory; writes skip txMu, which the enclosing RunInTx holds.
type memTx struct {
	*Memory
}

func (tx *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx purgatorystore.Store) error) error {
	return fn(ctx, tx)
}

func (tx *memTx) InsertHolding(ctx context.Context, h *purgatory.Holding) (bool, error) {
	return tx.insertHolding(ctx, h)
}

func (tx *memTx) MarkRestored(ctx context.Context, itemID string) (bool, error) {
	return tx.markRestored(ctx, itemID)
}

func (tx *memTx) MarkPurged(ctx context.Context, itemID, txID string) (bool, error) {
	return tx.markPurged(ctx, itemID, txID)
}

func (tx *memTx) MarkPurgedBatch(ctx context.Context, itemIDs []string, txID string) (int, error) {
	return tx.markPurgedBatch(ctx, itemIDs, txID)
}

func (tx *memTx) InsertDisposalReport(ctx context.Context, r *purgatory.DisposalReport) (bool, error) {
	return tx.insertDisposalReport(ctx, r)
}

func (tx *memTx) EnsureReputation(ctx context.Context, itemType string) error {
	return tx.ensureReputation(ctx, itemType)
}

func (tx *memTx) SaveReputation(ctx context.Context, rep *purgatory.CollectionReputation) error {
	return tx.saveReputation(ctx, rep)
}

func (tx *memTx) InsertRunLog(ctx context.Context, r *purgatory.RunLog) error {
	return tx.insertRunLog(ctx, r)
}

func (tx *memTx) SaveCursor(ctx context.Context, c *purgatory.Cursor) error {
	return tx.saveCursor(ctx, c)
}
