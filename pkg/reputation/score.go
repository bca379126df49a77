// Package reputation computes collection reputation scores from disposal
// report counters and evaluates the flagging predicate consumed by readers.
package reputation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

// Severity weights per disposal reason.
const (
	WeightJunk      = 1
	WeightSpam      = 5
	WeightMalicious = 20
)

// MaxScore is the score of a collection nobody has reported.
const MaxScore = 100.0

var hundred = decimal.NewFromInt(100)

// Score maps the three counters onto [0, 100], lower meaning worse.
//
//	score = 100 - (weighted / (total * WeightMalicious)) * 100
//
// rounded half-up to two decimals. No reports scores exactly MaxScore.
func Score(junk, spam, malicious int64) float64 {
	total := junk + spam + malicious
	if total <= 0 {
		return MaxScore
	}

	weighted := decimal.NewFromInt(junk*Weight(purgatory.ReasonJunk) +
		spam*Weight(purgatory.ReasonSpam) +
		malicious*Weight(purgatory.ReasonMalicious))
	worst := decimal.NewFromInt(total * Weight(purgatory.ReasonMalicious))

	score := hundred.Sub(weighted.Div(worst).Mul(hundred)).Round(2)
	f, _ := score.Float64()
	return f
}

// Weight returns the severity weight of a reason.
func Weight(reason purgatory.DisposalReason) int64 {
	switch reason {
	case purgatory.ReasonSpam:
		return WeightSpam
	case purgatory.ReasonMalicious:
		return WeightMalicious
	default:
		return WeightJunk
	}
}

// Apply returns rep with one more report of the given reason. A nil rep starts
// a new collection row. TotalReports and ReputationScore are always derived
// from the three counters.
func Apply(rep *purgatory.CollectionReputation, itemType string, reason purgatory.DisposalReason, at time.Time) *purgatory.CollectionReputation {
	next := purgatory.CollectionReputation{ItemType: itemType}
	if rep != nil {
		next = *rep
	}

	switch reason {
	case purgatory.ReasonSpam:
		next.SpamCount++
	case purgatory.ReasonMalicious:
		next.MaliciousCount++
	default:
		next.JunkCount++
	}

	next.TotalReports = next.JunkCount + next.SpamCount + next.MaliciousCount
	next.ReputationScore = Score(next.JunkCount, next.SpamCount, next.MaliciousCount)

	stamp := at
	if next.FirstReportedAt == nil {
		first := stamp
		next.FirstReportedAt = &first
	}
	next.LastReportedAt = &stamp

	return &next
}
