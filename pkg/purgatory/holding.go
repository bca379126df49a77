// Package purgatory holds the domain model shared by the indexer, the reaper
// and the read accessors.
package purgatory

import (
	"fmt"
	"time"
)

// Status is the custody state of a holding.
type Status string

const (
	StatusHeld     Status = "HELD"
	StatusRestored Status = "RESTORED"
	StatusPurged   Status = "PURGED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusRestored || s == StatusPurged
}

// DisposalReason is the depositor's classification of a surrendered item.
// Values match the u8 emitted by the custody program.
type DisposalReason int

const (
	ReasonJunk DisposalReason = iota
	ReasonSpam
	ReasonMalicious
)

func (r DisposalReason) String() string {
	switch r {
	case ReasonJunk:
		return "JUNK"
	case ReasonSpam:
		return "SPAM"
	case ReasonMalicious:
		return "MALICIOUS"
	default:
		return fmt.Sprintf("REASON(%d)", int(r))
	}
}

// Valid reports whether r is one of the known reasons.
func (r DisposalReason) Valid() bool {
	return r >= ReasonJunk && r <= ReasonMalicious
}

// ParseDisposalReason converts the on-chain u8 into a DisposalReason.
func ParseDisposalReason(v int64) (DisposalReason, error) {
	r := DisposalReason(v)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown disposal reason %d", v)
	}
	return r, nil
}

// Holding is one item surrendered into custody.
type Holding struct {
	ItemID           string
	ItemType         string
	Depositor        string
	DepositTimestamp int64 // epoch millis, ledger time
	FeePaid          int64 // MIST
	DisposalReason   DisposalReason
	Status           Status
	PurgeTxID        string
	RestoredAt       *time.Time
	PurgedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the holding is still held and was deposited before threshold.
func (h *Holding) Expired(thresholdMs int64) bool {
	return !h.Status.Terminal() && h.DepositTimestamp < thresholdMs
}

// DisposalReport is the append-only audit record written for every deposit.
type DisposalReport struct {
	ItemID          string
	ItemType        string
	ReporterAddress string
	Reason          DisposalReason
	LedgerTxID      string
	Timestamp       int64
	CreatedAt       time.Time
}

// Stats summarises holdings by status.
type Stats struct {
	Held     int64
	Restored int64
	Purged   int64
	Total    int64
	FeesPaid int64
}
