package purgatorystore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

// HoldingDao maps to the 'holdings' table.
type HoldingDao struct {
	bun.BaseModel    `bun:"table:holdings,alias:h"`
	ItemID           string     `bun:"item_id,pk,type:varchar(66)"`
	ItemType         string     `bun:"item_type,notnull,type:text"`
	Depositor        string     `bun:"depositor,notnull,type:varchar(66)"`
	DepositTimestamp int64      `bun:"deposit_timestamp,notnull"`
	FeePaid          int64      `bun:"fee_paid,notnull,default:0"`
	DisposalReason   int16      `bun:"disposal_reason,notnull,default:0"`
	Status           string     `bun:"status,notnull,type:varchar(16),default:'HELD'"`
	PurgeTxID        *string    `bun:"purge_tx_id,type:varchar(64)"`
	RestoredAt       *time.Time `bun:"restored_at"`
	PurgedAt         *time.Time `bun:"purged_at"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toHoldingDao(h *purgatory.Holding) *HoldingDao {
	dao := &HoldingDao{
		ItemID:           h.ItemID,
		ItemType:         h.ItemType,
		Depositor:        h.Depositor,
		DepositTimestamp: h.DepositTimestamp,
		FeePaid:          h.FeePaid,
		DisposalReason:   int16(h.DisposalReason),
		Status:           string(h.Status),
	}
	if dao.Status == "" {
		dao.Status = string(purgatory.StatusHeld)
	}
	return dao
}

func toHolding(dao *HoldingDao) *purgatory.Holding {
	h := &purgatory.Holding{
		ItemID:           dao.ItemID,
		ItemType:         dao.ItemType,
		Depositor:        dao.Depositor,
		DepositTimestamp: dao.DepositTimestamp,
		FeePaid:          dao.FeePaid,
		DisposalReason:   purgatory.DisposalReason(dao.DisposalReason),
		Status:           purgatory.Status(dao.Status),
		RestoredAt:       dao.RestoredAt,
		PurgedAt:         dao.PurgedAt,
		CreatedAt:        dao.CreatedAt,
		UpdatedAt:        dao.UpdatedAt,
	}
	if dao.PurgeTxID != nil {
		h.PurgeTxID = *dao.PurgeTxID
	}
	return h
}

// DisposalReportDao maps to the append-only 'disposal_reports' table.
type DisposalReportDao struct {
	bun.BaseModel   `bun:"table:disposal_reports,alias:dr"`
	ID              int64     `bun:"id,pk,autoincrement"`
	ItemID          string    `bun:"item_id,notnull,type:varchar(66)"`
	ItemType        string    `bun:"item_type,notnull,type:text"`
	ReporterAddress string    `bun:"reporter_address,notnull,type:varchar(66)"`
	Reason          int16     `bun:"reason,notnull"`
	LedgerTxID      string    `bun:"ledger_tx_id,notnull,type:varchar(64)"`
	Timestamp       int64     `bun:"timestamp,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toDisposalReportDao(r *purgatory.DisposalReport) *DisposalReportDao {
	return &DisposalReportDao{
		ItemID:          r.ItemID,
		ItemType:        r.ItemType,
		ReporterAddress: r.ReporterAddress,
		Reason:          int16(r.Reason),
		LedgerTxID:      r.LedgerTxID,
		Timestamp:       r.Timestamp,
	}
}

// CollectionReputationDao maps to the 'collection_reputation' table.
type CollectionReputationDao struct {
	bun.BaseModel   `bun:"table:collection_reputation,alias:cr"`
	ItemType        string     `bun:"item_type,pk,type:text"`
	JunkCount       int64      `bun:"junk_count,notnull,default:0"`
	SpamCount       int64      `bun:"spam_count,notnull,default:0"`
	MaliciousCount  int64      `bun:"malicious_count,notnull,default:0"`
	TotalReports    int64      `bun:"total_reports,notnull,default:0"`
	UniqueReporters int64      `bun:"unique_reporters,notnull,default:0"`
	ReputationScore float64    `bun:"reputation_score,notnull,type:numeric(5,2),default:100"`
	FirstReportedAt *time.Time `bun:"first_reported_at"`
	LastReportedAt  *time.Time `bun:"last_reported_at"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toReputationDao(r *purgatory.CollectionReputation) *CollectionReputationDao {
	return &CollectionReputationDao{
		ItemType:        r.ItemType,
		JunkCount:       r.JunkCount,
		SpamCount:       r.SpamCount,
		MaliciousCount:  r.MaliciousCount,
		TotalReports:    r.TotalReports,
		UniqueReporters: r.UniqueReporters,
		ReputationScore: r.ReputationScore,
		FirstReportedAt: r.FirstReportedAt,
		LastReportedAt:  r.LastReportedAt,
	}
}

func toReputation(dao *CollectionReputationDao) *purgatory.CollectionReputation {
	return &purgatory.CollectionReputation{
		ItemType:        dao.ItemType,
		JunkCount:       dao.JunkCount,
		SpamCount:       dao.SpamCount,
		MaliciousCount:  dao.MaliciousCount,
		TotalReports:    dao.TotalReports,
		UniqueReporters: dao.UniqueReporters,
		ReputationScore: dao.ReputationScore,
		FirstReportedAt: dao.FirstReportedAt,
		LastReportedAt:  dao.LastReportedAt,
		CreatedAt:       dao.CreatedAt,
		UpdatedAt:       dao.UpdatedAt,
	}
}

// RunLogDao maps to the append-only 'reaper_runs' table.
type RunLogDao struct {
	bun.BaseModel   `bun:"table:reaper_runs,alias:rr"`
	RunID           uuid.UUID `bun:"run_id,pk,type:uuid"`
	RunTimestamp    time.Time `bun:"run_timestamp,notnull"`
	ItemsScanned    int       `bun:"items_scanned,notnull,default:0"`
	ItemsPurged     int       `bun:"items_purged,notnull,default:0"`
	ItemsFailed     int       `bun:"items_failed,notnull,default:0"`
	GasUsed         *int64    `bun:"gas_used"`
	ExecutionTimeMs int64     `bun:"execution_time_ms,notnull,default:0"`
	Status          string    `bun:"status,notnull,type:varchar(16)"`
	ErrorMessage    *string   `bun:"error_message,type:text"`
	TxIDs           []string  `bun:"tx_ids,array,type:text[]"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toRunLogDao(r *purgatory.RunLog) *RunLogDao {
	dao := &RunLogDao{
		RunID:           r.RunID,
		RunTimestamp:    r.RunTimestamp,
		ItemsScanned:    r.ItemsScanned,
		ItemsPurged:     r.ItemsPurged,
		ItemsFailed:     r.ItemsFailed,
		GasUsed:         r.GasUsed,
		ExecutionTimeMs: r.ExecutionTimeMs,
		Status:          string(r.Status),
		TxIDs:           r.TxIDs,
	}
	if dao.TxIDs == nil {
		dao.TxIDs = []string{}
	}
	if r.ErrorMessage != "" {
		dao.ErrorMessage = &r.ErrorMessage
	}
	return dao
}

func toRunLog(dao *RunLogDao) *purgatory.RunLog {
	r := &purgatory.RunLog{
		RunID:           dao.RunID,
		RunTimestamp:    dao.RunTimestamp,
		ItemsScanned:    dao.ItemsScanned,
		ItemsPurged:     dao.ItemsPurged,
		ItemsFailed:     dao.ItemsFailed,
		GasUsed:         dao.GasUsed,
		ExecutionTimeMs: dao.ExecutionTimeMs,
		Status:          purgatory.RunStatus(dao.Status),
		TxIDs:           dao.TxIDs,
	}
	if dao.ErrorMessage != nil {
		r.ErrorMessage = *dao.ErrorMessage
	}
	return r
}

// CursorDao maps to the 'indexer_cursors' table. One row per named cursor.
type CursorDao struct {
	bun.BaseModel   `bun:"table:indexer_cursors,alias:ic"`
	Name            string    `bun:"name,pk,type:varchar(64)"`
	TxDigest        string    `bun:"tx_digest,notnull,type:varchar(64)"`
	EventSeq        string    `bun:"event_seq,notnull,type:varchar(32)"`
	EventsProcessed int64     `bun:"events_processed,notnull,default:0"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toCursor(dao *CursorDao) *purgatory.Cursor {
	return &purgatory.Cursor{
		Name:            dao.Name,
		TxDigest:        dao.TxDigest,
		EventSeq:        dao.EventSeq,
		EventsProcessed: dao.EventsProcessed,
		UpdatedAt:       dao.UpdatedAt,
	}
}
