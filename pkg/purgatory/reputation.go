package purgatory

import "time"

// CollectionReputation aggregates disposal reports for one item type.
type CollectionReputation struct {
	ItemType        string
	JunkCount       int64
	SpamCount       int64
	MaliciousCount  int64
	TotalReports    int64
	UniqueReporters int64
	ReputationScore float64
	FirstReportedAt *time.Time
	LastReportedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReputationOrder selects the ranking used when listing collections.
type ReputationOrder string

const (
	OrderMostMalicious    ReputationOrder = "malicious"
	OrderMostSpam         ReputationOrder = "spam"
	OrderLowestReputation ReputationOrder = "lowest"
)

// Valid reports whether o is a supported ordering.
func (o ReputationOrder) Valid() bool {
	switch o {
	case OrderMostMalicious, OrderMostSpam, OrderLowestReputation:
		return true
	}
	return false
}
