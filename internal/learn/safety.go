package learn

import (
	"log/slog"
	"strings"

	"github.com/kontoworks/konto/internal/glob"
	"github.com/kontoworks/konto/internal/model"
)

// minCandidateConfidence is the floor below which an oracle-proposed pattern
// is discarded without further checks. Adjustments from the review round are
// held to the same floor.
const minCandidateConfidence = 50

// SafetyFilter screens oracle-proposed patterns deterministically before
// anything downstream trusts them.
type SafetyFilter struct {
	logger *slog.Logger
}

// NewSafetyFilter creates a filter that logs every rejection with the
// offending evidence.
func NewSafetyFilter(logger *slog.Logger) *SafetyFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SafetyFilter{logger: logger}
}

// Screen returns the candidates that survive every check, in input order.
// Manual removals are the strongest negative evidence and are checked before
// the collision set.
func (f *SafetyFilter) Screen(candidates []Candidate, removals []model.ManualRemoval, collisions []model.Transaction) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if reason, ok := f.check(c, removals, collisions); !ok {
			f.logger.Warn("rejecting proposed pattern",
				"pattern", c.Pattern,
				"confidence", c.Confidence,
				"reason", reason)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (f *SafetyFilter) check(c Candidate, removals []model.ManualRemoval, collisions []model.Transaction) (string, bool) {
	if strings.TrimSpace(c.Pattern) == "" || !glob.Valid(c.Pattern) {
		return "malformed pattern", false
	}
	if c.Confidence < minCandidateConfidence {
		return "confidence below floor", false
	}
	for _, r := range removals {
		if glob.MatchFlexible(c.Pattern, r.Name, r.Partner, "") {
			return "matches removed transaction " + r.TransactionID, false
		}
	}
	for i := range collisions {
		txn := &collisions[i]
		if glob.MatchFlexible(c.Pattern, txn.Name, txn.Partner, txn.Reference) {
			return "matches transaction " + txn.ID + " of another partner", false
		}
	}
	if genericOnly(c.Pattern) {
		return "generic vocabulary only", false
	}
	return "", true
}
