package query

import (
	"time"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
)

// HoldingResponse is the JSON view of a holding.
type HoldingResponse struct {
	ItemID           string     `json:"item_id"`
	ItemType         string     `json:"item_type"`
	Depositor        string     `json:"depositor"`
	DepositTimestamp int64      `json:"deposit_timestamp"`
	FeePaid          int64      `json:"fee_paid"`
	DisposalReason   string     `json:"disposal_reason"`
	Status           string     `json:"status"`
	PurgeTxID        string     `json:"purge_tx_id,omitempty"`
	RestoredAt       *time.Time `json:"restored_at,omitempty"`
	PurgedAt         *time.Time `json:"purged_at,omitempty"`
}

// ReputationResponse is the JSON view of a collection reputation.
type ReputationResponse struct {
	ItemType        string     `json:"item_type"`
	JunkCount       int64      `json:"junk_count"`
	SpamCount       int64      `json:"spam_count"`
	MaliciousCount  int64      `json:"malicious_count"`
	TotalReports    int64      `json:"total_reports"`
	UniqueReporters int64      `json:"unique_reporters"`
	ReputationScore float64    `json:"reputation_score"`
	FirstReportedAt *time.Time `json:"first_reported_at,omitempty"`
	LastReportedAt  *time.Time `json:"last_reported_at,omitempty"`
}

// CheckResponse is the JSON view of a flag verdict.
type CheckResponse struct {
	ItemType   string              `json:"item_type"`
	Flagged    bool                `json:"flagged"`
	Reason     string              `json:"reason"`
	Reputation *ReputationResponse `json:"reputation"`
}

// RunResponse is the JSON view of a reaper run log.
type RunResponse struct {
	RunID           string    `json:"run_id"`
	RunTimestamp    time.Time `json:"run_timestamp"`
	ItemsScanned    int       `json:"items_scanned"`
	ItemsPurged     int       `json:"items_purged"`
	ItemsFailed     int       `json:"items_failed"`
	GasUsed         *int64    `json:"gas_used"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	TxIDs           []string  `json:"tx_ids"`
}

// StatsResponse is the JSON view of holding statistics.
type StatsResponse struct {
	Held     int64 `json:"held"`
	Restored int64 `json:"restored"`
	Purged   int64 `json:"purged"`
	Total    int64 `json:"total"`
	FeesPaid int64 `json:"fees_paid"`
}

// CheckBatchRequest is the body of a batch flag check.
type CheckBatchRequest struct {
	ItemTypes []string `json:"item_types"`
}

func toHoldingResponse(h *purgatory.Holding) *HoldingResponse {
	return &HoldingResponse{
		ItemID:           h.ItemID,
		ItemType:         h.ItemType,
		Depositor:        h.Depositor,
		DepositTimestamp: h.DepositTimestamp,
		FeePaid:          h.FeePaid,
		DisposalReason:   h.DisposalReason.String(),
		Status:           string(h.Status),
		PurgeTxID:        h.PurgeTxID,
		RestoredAt:       h.RestoredAt,
		PurgedAt:         h.PurgedAt,
	}
}

func toHoldingResponses(hs []*purgatory.Holding) []*HoldingResponse {
	out := make([]*HoldingResponse, len(hs))
	for i, h := range hs {
		out[i] = toHoldingResponse(h)
	}
	return out
}

func toReputationResponse(rep *purgatory.CollectionReputation) *ReputationResponse {
	if rep == nil {
		return nil
	}
	return &ReputationResponse{
		ItemType:        rep.ItemType,
		JunkCount:       rep.JunkCount,
		SpamCount:       rep.SpamCount,
		MaliciousCount:  rep.MaliciousCount,
		TotalReports:    rep.TotalReports,
		UniqueReporters: rep.UniqueReporters,
		ReputationScore: rep.ReputationScore,
		FirstReportedAt: rep.FirstReportedAt,
		LastReportedAt:  rep.LastReportedAt,
	}
}

// cleanReputation is reported for item types nobody has reported yet.
func cleanReputation(itemType string) *ReputationResponse {
	return &ReputationResponse{ItemType: itemType, ReputationScore: reputation.MaxScore}
}

func toReputationResponses(reps []*purgatory.CollectionReputation) []*ReputationResponse {
	out := make([]*ReputationResponse, len(reps))
	for i, rep := range reps {
		out[i] = toReputationResponse(rep)
	}
	return out
}

func toCheckResponse(c *Check) *CheckResponse {
	return &CheckResponse{
		ItemType:   c.ItemType,
		Flagged:    c.Flagged,
		Reason:     c.Reason,
		Reputation: toReputationResponse(c.Reputation),
	}
}

func toRunResponse(r *purgatory.RunLog) *RunResponse {
	txIDs := r.TxIDs
	if txIDs == nil {
		txIDs = []string{}
	}
	return &RunResponse{
		RunID:           r.RunID.String(),
		RunTimestamp:    r.RunTimestamp,
		ItemsScanned:    r.ItemsScanned,
		ItemsPurged:     r.ItemsPurged,
		ItemsFailed:     r.ItemsFailed,
		GasUsed:         r.GasUsed,
		ExecutionTimeMs: r.ExecutionTimeMs,
		Status:          string(r.Status),
		ErrorMessage:    r.ErrorMessage,
		TxIDs:           txIDs,
	}
}

func toStatsResponse(s *purgatory.Stats) *StatsResponse {
	return &StatsResponse{
		Held:     s.Held,
		Restored: s.Restored,
		Purged:   s.Purged,
		Total:    s.Total,
		FeesPaid: s.FeesPaid,
	}
}
