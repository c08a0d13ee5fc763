package learn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kontoworks/konto/internal/glob"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// Cascade revokes assignments that a changed pattern set no longer supports.
// Only auto-derived assignments and legacy rows without a recorded origin are
// touched; anything the user confirmed stays.
type Cascade struct {
	storage   service.Storage
	logger    *slog.Logger
	threshold int
}

// NewCascade creates a cascade bound to the auto-apply threshold.
func NewCascade(storage service.Storage, threshold int, logger *slog.Logger) *Cascade {
	if threshold <= 0 {
		threshold = DefaultAutoThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{storage: storage, threshold: threshold, logger: logger}
}

// Unassign clears every revocable assignment of the partner that no pattern
// in the new set still matches at the auto-apply threshold. An empty set
// unassigns all of them. Returns the number of transactions cleared.
func (c *Cascade) Unassign(ctx context.Context, userID, partnerID string, patterns []model.LearnedPattern) (int, error) {
	txns, err := c.storage.GetAutoAssignedTransactions(ctx, userID, partnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load auto assignments: %w", err)
	}

	ids := make([]string, 0, len(txns))
	for i := range txns {
		if !c.stillMatches(&txns[i], patterns) {
			ids = append(ids, txns[i].ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := c.storage.UnassignTransactions(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to unassign transactions: %w", err)
	}

	c.logger.Info("cascade unassigned transactions",
		"partner_id", partnerID,
		"count", len(ids))
	return len(ids), nil
}

func (c *Cascade) stillMatches(txn *model.Transaction, patterns []model.LearnedPattern) bool {
	for i := range patterns {
		p := &patterns[i]
		if p.Confidence < c.threshold {
			continue
		}
		if glob.MatchFlexible(p.Pattern, txn.Name, txn.Partner, txn.Reference) {
			return true
		}
	}
	return false
}
