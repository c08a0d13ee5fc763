package learn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kontoworks/konto/internal/glob"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// Volume thresholds above which a pattern's real match count is flagged as
// suspicious. A single partner rarely accounts for more than a sliver of the
// corpus.
const (
	suspiciousMatches = 20
	suspiciousPercent = 3.0
)

// reportSampleCap bounds how many concrete matches a report carries into the
// review prompt.
const reportSampleCap = 5

// scanPageSize is the page size for the corpus scan.
const scanPageSize = 500

// Report is the dry-run result for one candidate pattern.
type Report struct {
	Candidate
	Samples    []model.Transaction
	Matches    int
	Conflicts  int
	Scanned    int
	Percent    float64
	Suspicious bool
}

// Verifier measures candidate patterns against the user's full transaction
// corpus before anything is persisted. The sampled prompt sets are too small
// to reveal a pattern's real blast radius.
type Verifier struct {
	storage service.Storage
	logger  *slog.Logger
	scanCap int
}

// NewVerifier creates a verifier. scanCap bounds the corpus scan; zero or
// negative applies the default.
func NewVerifier(storage service.Storage, scanCap int, logger *slog.Logger) *Verifier {
	if scanCap <= 0 {
		scanCap = DefaultScanCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{storage: storage, scanCap: scanCap, logger: logger}
}

// DryRun scans the corpus once and reports, per candidate, how many
// transactions would match, how many of those already belong to a different
// partner, and whether the volume looks suspicious. Reports keep the input
// order.
func (v *Verifier) DryRun(ctx context.Context, userID, partnerID string, candidates []Candidate) ([]Report, error) {
	reports := make([]Report, len(candidates))
	for i, c := range candidates {
		reports[i] = Report{Candidate: c}
	}
	if len(reports) == 0 {
		return reports, nil
	}

	scanned := 0
	cursor := ""
	for scanned < v.scanCap {
		limit := min(scanPageSize, v.scanCap-scanned)
		page, next, err := v.storage.ScanTransactions(ctx, userID, cursor, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transactions: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for ti := range page {
			txn := &page[ti]
			for ri := range reports {
				r := &reports[ri]
				if !glob.MatchFlexible(r.Pattern, txn.Name, txn.Partner, txn.Reference) {
					continue
				}
				r.Matches++
				if txn.PartnerID != "" && txn.PartnerID != partnerID {
					r.Conflicts++
				}
				if len(r.Samples) < reportSampleCap {
					r.Samples = append(r.Samples, *txn)
				}
			}
		}

		scanned += len(page)
		if next == "" {
			break
		}
		cursor = next
	}

	for i := range reports {
		r := &reports[i]
		r.Scanned = scanned
		if scanned > 0 {
			r.Percent = float64(r.Matches) / float64(scanned) * 100
		}
		r.Suspicious = r.Matches > suspiciousMatches || r.Percent > suspiciousPercent
		v.logger.Debug("pattern dry run",
			"pattern", r.Pattern,
			"matches", r.Matches,
			"conflicts", r.Conflicts,
			"scanned", scanned,
			"suspicious", r.Suspicious)
	}

	return reports, nil
}

// dropSuspicious keeps only the patterns below the volume thresholds. This is
// the deterministic fallback when no review round runs.
func dropSuspicious(reports []Report, logger *slog.Logger) []Candidate {
	kept := make([]Candidate, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if r.Suspicious {
			logger.Warn("dropping suspicious pattern",
				"pattern", r.Pattern,
				"matches", r.Matches,
				"percent", r.Percent)
			continue
		}
		kept = append(kept, r.Candidate)
	}
	return kept
}

// applyVerdicts folds the review round into the candidate list. Patterns the
// response does not mention are approved; explicit rejections and
// unrecognized actions drop the pattern; adjustments below the confidence
// floor drop it too.
func applyVerdicts(reports []Report, verdicts []Verdict, logger *slog.Logger) []Candidate {
	byPattern := make(map[string]Verdict, len(verdicts))
	for _, v := range verdicts {
		byPattern[strings.ToLower(v.Pattern)] = v
	}

	kept := make([]Candidate, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		verdict, mentioned := byPattern[strings.ToLower(r.Pattern)]
		if !mentioned {
			kept = append(kept, r.Candidate)
			continue
		}

		switch verdict.Action {
		case actionApprove:
			kept = append(kept, r.Candidate)
		case actionAdjust:
			if verdict.Confidence < minCandidateConfidence {
				logger.Info("review adjusted pattern below the confidence floor",
					"pattern", r.Pattern,
					"confidence", verdict.Confidence,
					"reason", verdict.Reason)
				continue
			}
			c := r.Candidate
			c.Confidence = verdict.Confidence
			logger.Info("review adjusted pattern confidence",
				"pattern", r.Pattern,
				"from", r.Candidate.Confidence,
				"to", c.Confidence,
				"reason", verdict.Reason)
			kept = append(kept, c)
		case actionReject:
			logger.Info("review rejected pattern",
				"pattern", r.Pattern,
				"reason", verdict.Reason)
		default:
			logger.Warn("review returned unknown action, dropping pattern",
				"pattern", r.Pattern,
				"action", verdict.Action)
		}
	}
	return kept
}
