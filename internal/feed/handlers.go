package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// Matcher is the slice of the match engine the feed reactions drive.
type Matcher interface {
	MatchPartners(ctx context.Context, userID string, ids []string) (service.MatchStats, error)
	MatchCategories(ctx context.Context, userID string, ids []string) (service.MatchStats, error)
	ApplyPatterns(ctx context.Context, userID string) (service.MatchStats, error)
}

// Enqueuer accepts debounced learning requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, userID, partnerID string) error
}

// Rematch returns the handler that keeps match state fresh: created rows are
// rescored for partners and categories. Subscribe it to the transactions
// collection. Updated events are ignored so match writes cannot feed
// themselves.
func Rematch(matcher Matcher) Handler {
	return func(ctx context.Context, event Event) error {
		if event.Kind != KindCreated || len(event.After) == 0 {
			return nil
		}
		for userID, ids := range groupByUser(event.After) {
			if _, err := matcher.MatchPartners(ctx, userID, ids); err != nil {
				return fmt.Errorf("rematch after write: %w", err)
			}
			if _, err := matcher.MatchCategories(ctx, userID, ids); err != nil {
				return fmt.Errorf("recategorize after write: %w", err)
			}
		}
		return nil
	}
}

// ConfirmationLearning returns the handler that enqueues pattern learning
// when an update settles a user-confirmed assignment that was not there
// before. Without prior row state every confirmed row enqueues; the queue
// debounces and re-learning is idempotent, so over-enqueueing is harmless.
func ConfirmationLearning(queue Enqueuer) Handler {
	return func(ctx context.Context, event Event) error {
		if event.Kind != KindUpdated {
			return nil
		}
		prior := indexByID(event.Before)
		var errs []error
		for i := range event.After {
			after := &event.After[i]
			if !after.UserConfirmed() {
				continue
			}
			if before, ok := prior[after.ID]; ok && before.UserConfirmed() && before.PartnerID == after.PartnerID {
				continue
			}
			if err := queue.Enqueue(ctx, after.UserID, after.PartnerID); err != nil {
				errs = append(errs, fmt.Errorf("enqueue learning for partner %s: %w", after.PartnerID, err))
			}
		}
		return errors.Join(errs...)
	}
}

// PartnerBackfill returns the handler that re-applies patterns after a
// partner write, so fresh identifiers and localized copies pick up existing
// unassigned rows. Global templates have no owning user to backfill.
func PartnerBackfill(matcher Matcher) Handler {
	return func(ctx context.Context, event Event) error {
		if event.Partner == nil || event.Partner.UserID == "" {
			return nil
		}
		if _, err := matcher.ApplyPatterns(ctx, event.Partner.UserID); err != nil {
			return fmt.Errorf("backfill after partner write: %w", err)
		}
		return nil
	}
}

func groupByUser(txns []model.Transaction) map[string][]string {
	out := make(map[string][]string)
	for i := range txns {
		out[txns[i].UserID] = append(out[txns[i].UserID], txns[i].ID)
	}
	return out
}

func indexByID(txns []model.Transaction) map[string]*model.Transaction {
	out := make(map[string]*model.Transaction, len(txns))
	for i := range txns {
		out[txns[i].ID] = &txns[i]
	}
	return out
}
