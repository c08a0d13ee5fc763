package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/match"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

const (
	// DefaultFileMatchLimit caps how many candidates one lookup returns.
	DefaultFileMatchLimit = 10

	// fileCandidateCap bounds the transaction set scored against one file.
	fileCandidateCap = 500

	// fileDateWindowDays is the half-width of the candidate date window. The
	// date signal zeroes out past 30 days, so 45 keeps every scorable
	// candidate with slack for booking delays.
	fileDateWindowDays = 45
)

// FileMatch pairs a candidate transaction with its score breakdown.
type FileMatch struct {
	Transaction model.Transaction
	Score       match.FileScore
}

// FindTransactionMatchesForFile scores stored transactions against a document
// and returns the candidates above the suggestion threshold, best first.
// excludeIDs drops already-linked transactions from the candidate set; query
// narrows it by free text. A zero limit falls back to DefaultFileMatchLimit.
func (m *Matcher) FindTransactionMatchesForFile(ctx context.Context, userID string, file *model.File, excludeIDs []string, query string, limit int) ([]FileMatch, error) {
	if userID == "" {
		return nil, common.NewUserError("user ID is required", nil)
	}
	if file == nil {
		return nil, common.NewUserError("file is required", nil)
	}
	if limit <= 0 {
		limit = DefaultFileMatchLimit
	}

	filter := service.TransactionFilter{
		Query:      query,
		ExcludeIDs: excludeIDs,
		Limit:      fileCandidateCap,
	}
	if file.Date != nil {
		start := file.Date.AddDate(0, 0, -fileDateWindowDays)
		end := file.Date.AddDate(0, 0, fileDateWindowDays)
		filter.StartDate = &start
		filter.EndDate = &end
	}

	txns, err := m.storage.GetTransactions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate transactions: %w", err)
	}

	matches := make([]FileMatch, 0, len(txns))
	for i := range txns {
		score := match.ScoreFileTransaction(file, &txns[i])
		if !score.Suggest() {
			continue
		}
		matches = append(matches, FileMatch{Transaction: txns[i], Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score.Confidence > matches[j].Score.Confidence
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	m.logger.Debug("matched file against transactions",
		"user_id", userID,
		"file_id", file.ID,
		"candidates", len(txns),
		"matches", len(matches))
	return matches, nil
}
