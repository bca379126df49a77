package purgatory

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of one reaper execution.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// RunLog records one reaper execution.
type RunLog struct {
	RunID           uuid.UUID
	RunTimestamp    time.Time
	ItemsScanned    int
	ItemsPurged     int
	ItemsFailed     int
	GasUsed         *int64
	ExecutionTimeMs int64
	Status          RunStatus
	ErrorMessage    string
	TxIDs           []string
}

// NewRunLog starts a run record stamped at now.
func NewRunLog(now time.Time) *RunLog {
	return &RunLog{
		RunID:        uuid.New(),
		RunTimestamp: now,
		TxIDs:        []string{},
	}
}

// Finish derives the run status from the counters and stamps the duration.
// A run with any failed item is PARTIAL; FAILED is reserved for runs that
// aborted before submitting anything and is set through Abort.
func (r *RunLog) Finish(now time.Time) {
	r.ExecutionTimeMs = now.Sub(r.RunTimestamp).Milliseconds()
	if r.Status == RunFailed {
		return
	}
	if r.ItemsFailed > 0 {
		r.Status = RunPartial
		return
	}
	r.Status = RunSuccess
}

// Abort marks the run FAILED with the given cause.
func (r *RunLog) Abort(err error, now time.Time) {
	r.Status = RunFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	r.Finish(now)
}
