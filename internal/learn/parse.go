package learn

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/oracle"
)

// Candidate is one oracle-proposed pattern before screening.
type Candidate struct {
	Pattern              string
	SourceTransactionIDs []string
	Confidence           int
}

// Verdict is the review round's judgment of one candidate.
type Verdict struct {
	Pattern    string
	Action     string
	Reason     string
	Confidence int
}

// Review actions. Anything else drops the pattern.
const (
	actionApprove = "approve"
	actionReject  = "reject"
	actionAdjust  = "adjust"
)

// parseCandidates reads proposed patterns out of raw oracle output. Code
// fences and surrounding prose are tolerated; an unreadable response or
// element yields zero candidates rather than an error.
func parseCandidates(raw string) []Candidate {
	elems, ok := arrayElements(raw)
	if !ok {
		return nil
	}

	out := make([]Candidate, 0, len(elems))
	for _, elem := range elems {
		var wire struct {
			Pattern              string   `json:"pattern"`
			SourceTransactionIDs []string `json:"sourceTransactionIds"`
			Confidence           float64  `json:"confidence"`
		}
		if err := json.Unmarshal(elem, &wire); err != nil {
			continue
		}
		out = append(out, Candidate{
			Pattern:              strings.TrimSpace(wire.Pattern),
			SourceTransactionIDs: wire.SourceTransactionIDs,
			Confidence:           model.ClampConfidence(int(math.Round(wire.Confidence))),
		})
	}
	return out
}

// parseVerdicts reads review judgments out of raw oracle output. An
// unreadable response yields zero verdicts, which approves every pattern by
// omission.
func parseVerdicts(raw string) []Verdict {
	elems, ok := arrayElements(raw)
	if !ok {
		return nil
	}

	out := make([]Verdict, 0, len(elems))
	for _, elem := range elems {
		var wire struct {
			Pattern    string  `json:"pattern"`
			Action     string  `json:"action"`
			Reason     string  `json:"reason"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal(elem, &wire); err != nil {
			continue
		}
		pattern := strings.TrimSpace(wire.Pattern)
		if pattern == "" {
			continue
		}
		out = append(out, Verdict{
			Pattern:    pattern,
			Action:     strings.ToLower(strings.TrimSpace(wire.Action)),
			Reason:     wire.Reason,
			Confidence: model.ClampConfidence(int(math.Round(wire.Confidence))),
		})
	}
	return out
}

func arrayElements(raw string) ([]json.RawMessage, bool) {
	body, ok := oracle.ExtractJSONArray(oracle.CleanResponse(raw))
	if !ok {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, false
	}
	return elems, true
}
