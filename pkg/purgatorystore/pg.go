package purgatorystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

type pgStore struct {
	db bun.IDB
}

// NewStore creates a new postgres implementation of the purgatory store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgStore{db: tx})
	})
}

func (s *pgStore) InsertHolding(ctx context.Context, h *purgatory.Holding) (bool, error) {
	res, err := s.db.NewInsert().
		Model(toHoldingDao(h)).
		On("CONFLICT (item_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert holding %s: %w", h.ItemID, err)
	}
	return affected(res) > 0, nil
}

func (s *pgStore) MarkRestored(ctx context.Context, itemID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*HoldingDao)(nil)).
		Set("status = ?", purgatory.StatusRestored).
		Set("restored_at = NOW()").
		Set("updated_at = NOW()").
		Where("item_id = ?", itemID).
		Where("status = ?", purgatory.StatusHeld).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s restored: %w", itemID, err)
	}
	return affected(res) > 0, nil
}

func (s *pgStore) MarkPurged(ctx context.Context, itemID, txID string) (bool, error) {
	n, err := s.markPurged(ctx, []string{itemID}, txID)
	return n > 0, err
}

func (s *pgStore) MarkPurgedBatch(ctx context.Context, itemIDs []string, txID string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	return s.markPurged(ctx, itemIDs, txID)
}

func (s *pgStore) markPurged(ctx context.Context, itemIDs []string, txID string) (int, error) {
	res, err := s.db.NewUpdate().
		Model((*HoldingDao)(nil)).
		Set("status = ?", purgatory.StatusPurged).
		Set("purge_tx_id = ?", txID).
		Set("purged_at = NOW()").
		Set("updated_at = NOW()").
		Where("item_id IN (?)", bun.In(itemIDs)).
		Where("status = ?", purgatory.StatusHeld).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark %d holdings purged: %w", len(itemIDs), err)
	}
	return int(affected(res)), nil
}

func (s *pgStore) GetHolding(ctx context.Context, itemID string) (*purgatory.Holding, error) {
	dao := new(HoldingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("item_id = ?", itemID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldingNotFound
		}
		return nil, fmt.Errorf("failed to get holding %s: %w", itemID, err)
	}
	return toHolding(dao), nil
}

func (s *pgStore) ListExpired(ctx context.Context, thresholdMs int64, limit int) ([]*purgatory.Holding, error) {
	var daos []HoldingDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", purgatory.StatusHeld).
		Where("deposit_timestamp < ?", thresholdMs).
		OrderExpr("deposit_timestamp ASC, item_id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired holdings: %w", err)
	}
	return toHoldings(daos), nil
}

func (s *pgStore) ListByDepositor(ctx context.Context, depositor string) ([]*purgatory.Holding, error) {
	var daos []HoldingDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("depositor = ?", depositor).
		OrderExpr("deposit_timestamp DESC, item_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for %s: %w", depositor, err)
	}
	return toHoldings(daos), nil
}

func toHoldings(daos []HoldingDao) []*purgatory.Holding {
	out := make([]*purgatory.Holding, len(daos))
	for i := range daos {
		out[i] = toHolding(&daos[i])
	}
	return out
}

type statusCount struct {
	Status string `bun:"status"`
	Count  int64  `bun:"count"`
	Fees   int64  `bun:"fees"`
}

func (s *pgStore) Stats(ctx context.Context) (*purgatory.Stats, error) {
	var rows []statusCount
	err := s.db.NewSelect().
		Model((*HoldingDao)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(fee_paid), 0) AS fees").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to compute holding stats: %w", err)
	}

	stats := &purgatory.Stats{}
	for _, r := range rows {
		switch purgatory.Status(r.Status) {
		case purgatory.StatusHeld:
			stats.Held = r.Count
		case purgatory.StatusRestored:
			stats.Restored = r.Count
		case purgatory.StatusPurged:
			stats.Purged = r.Count
		}
		stats.Total += r.Count
		stats.FeesPaid += r.Fees
	}
	return stats, nil
}

func (s *pgStore) InsertDisposalReport(ctx context.Context, r *purgatory.DisposalReport) (bool, error) {
	res, err := s.db.NewInsert().
		Model(toDisposalReportDao(r)).
		On("CONFLICT (item_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert disposal report for %s: %w", r.ItemID, err)
	}
	return affected(res) > 0, nil
}

func (s *pgStore) CountReporters(ctx context.Context, itemType string) (int64, error) {
	var n int64
	err := s.db.NewSelect().
		Model((*DisposalReportDao)(nil)).
		ColumnExpr("COUNT(DISTINCT reporter_address)").
		Where("item_type = ?", itemType).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reporters for %s: %w", itemType, err)
	}
	return n, nil
}

func (s *pgStore) EnsureReputation(ctx context.Context, itemType string) error {
	_, err := s.db.NewInsert().
		Model(&CollectionReputationDao{ItemType: itemType, ReputationScore: 100}).
		On("CONFLICT (item_type) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure reputation row for %s: %w", itemType, err)
	}
	return nil
}

func (s *pgStore) GetReputationForUpdate(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	return s.getReputation(ctx, itemType, true)
}

func (s *pgStore) GetReputation(ctx context.Context, itemType string) (*purgatory.CollectionReputation, error) {
	return s.getReputation(ctx, itemType, false)
}

func (s *pgStore) getReputation(ctx context.Context, itemType string, lock bool) (*purgatory.CollectionReputation, error) {
	dao := new(CollectionReputationDao)
	q := s.db.NewSelect().
		Model(dao).
		Where("item_type = ?", itemType)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReputationNotFound
		}
		return nil, fmt.Errorf("failed to get reputation for %s: %w", itemType, err)
	}
	return toReputation(dao), nil
}

func (s *pgStore) SaveReputation(ctx context.Context, rep *purgatory.CollectionReputation) error {
	dao := toReputationDao(rep)
	_, err := s.db.NewUpdate().
		Model((*CollectionReputationDao)(nil)).
		Set("junk_count = ?", dao.JunkCount).
		Set("spam_count = ?", dao.SpamCount).
		Set("malicious_count = ?", dao.MaliciousCount).
		Set("total_reports = ?", dao.TotalReports).
		Set("unique_reporters = ?", dao.UniqueReporters).
		Set("reputation_score = ?", dao.ReputationScore).
		Set("first_reported_at = ?", dao.FirstReportedAt).
		Set("last_reported_at = ?", dao.LastReportedAt).
		Set("updated_at = NOW()").
		Where("item_type = ?", dao.ItemType).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save reputation for %s: %w", rep.ItemType, err)
	}
	return nil
}

func (s *pgStore) ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) ([]*purgatory.CollectionReputation, error) {
	var daos []CollectionReputationDao
	q := s.db.NewSelect().Model(&daos).Limit(limit)

	switch order {
	case purgatory.OrderMostMalicious:
		q = q.OrderExpr("malicious_count DESC, total_reports DESC, item_type ASC")
	case purgatory.OrderMostSpam:
		q = q.OrderExpr("spam_count DESC, total_reports DESC, item_type ASC")
	case purgatory.OrderLowestReputation:
		q = q.OrderExpr("reputation_score ASC, total_reports DESC, item_type ASC")
	default:
		return nil, fmt.Errorf("unknown reputation order %q", order)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list reputations: %w", err)
	}
	out := make([]*purgatory.CollectionReputation, len(daos))
	for i := range daos {
		out[i] = toReputation(&daos[i])
	}
	return out, nil
}

func (s *pgStore) InsertRunLog(ctx context.Context, r *purgatory.RunLog) error {
	if _, err := s.db.NewInsert().Model(toRunLogDao(r)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert run log %s: %w", r.RunID, err)
	}
	return nil
}

func (s *pgStore) ListRunLogs(ctx context.Context, limit int) ([]*purgatory.RunLog, error) {
	var daos []RunLogDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("run_timestamp DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	out := make([]*purgatory.RunLog, len(daos))
	for i := range daos {
		out[i] = toRunLog(&daos[i])
	}
	return out, nil
}

func (s *pgStore) GetCursor(ctx context.Context, name string) (*purgatory.Cursor, error) {
	dao := new(CursorDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCursorNotFound
		}
		return nil, fmt.Errorf("failed to get cursor %s: %w", name, err)
	}
	return toCursor(dao), nil
}

func (s *pgStore) SaveCursor(ctx context.Context, c *purgatory.Cursor) error {
	dao := &CursorDao{
		Name:            c.Name,
		TxDigest:        c.TxDigest,
		EventSeq:        c.EventSeq,
		EventsProcessed: c.EventsProcessed,
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (name) DO UPDATE").
		Set("tx_digest = EXCLUDED.tx_digest").
		Set("event_seq = EXCLUDED.event_seq").
		Set("events_processed = EXCLUDED.events_processed").
		Set("updated_at = NOW()").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", c.Name, err)
	}
	return nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
