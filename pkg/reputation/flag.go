package reputation

import (
	"fmt"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

// Thresholds configure when a collection is flagged.
type Thresholds struct {
	MaliciousCount     int64   `yaml:"malicious_count" default:"10" validate:"gt=0"`
	SpamCount          int64   `yaml:"spam_count" default:"50" validate:"gt=0"`
	LowScore           float64 `yaml:"low_score" default:"30" validate:"gte=0,lte=100"`
	LowScoreMinReports int64   `yaml:"low_score_min_reports" default:"20" validate:"gte=0"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaliciousCount:     10,
		SpamCount:          50,
		LowScore:           30,
		LowScoreMinReports: 20,
	}
}

// Flag is the outcome of evaluating a collection against Thresholds.
type Flag struct {
	Flagged    bool
	Reason     string
	Reputation *purgatory.CollectionReputation
}

// Evaluate applies the flagging predicate. Criteria are checked in order:
// malicious count, spam count, then low score with enough reports.
func Evaluate(rep *purgatory.CollectionReputation, th Thresholds) Flag {
	if rep == nil {
		return Flag{Reason: "No reports"}
	}

	switch {
	case rep.MaliciousCount >= th.MaliciousCount:
		return Flag{
			Flagged:    true,
			Reason:     fmt.Sprintf("%d MALICIOUS reports", rep.MaliciousCount),
			Reputation: rep,
		}
	case rep.SpamCount >= th.SpamCount:
		return Flag{
			Flagged:    true,
			Reason:     fmt.Sprintf("%d SPAM reports", rep.SpamCount),
			Reputation: rep,
		}
	case rep.ReputationScore < th.LowScore && rep.TotalReports >= th.LowScoreMinReports:
		return Flag{
			Flagged:    true,
			Reason:     fmt.Sprintf("Low reputation score: %.2f", rep.ReputationScore),
			Reputation: rep,
		}
	}

	return Flag{Reason: "Clean", Reputation: rep}
}
