package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// DefaultDebounce is how long a learning request sits in the queue, so that a
// burst of assignments produces one run instead of many.
const DefaultDebounce = 5 * time.Minute

// Queue coalesces learning requests per user and drains them once their
// debounce deadline passes. All queue state lives in the store; concurrent
// sweeps coordinate through an atomic claim.
type Queue struct {
	storage  service.Storage
	workflow *Workflow
	logger   *slog.Logger
	debounce time.Duration
}

// NewQueue creates a queue. A non-positive debounce applies the default.
func NewQueue(storage service.Storage, workflow *Workflow, debounce time.Duration, logger *slog.Logger) *Queue {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{storage: storage, workflow: workflow, debounce: debounce, logger: logger}
}

// Enqueue requests learning for a partner. The first request of an empty
// queue starts the debounce clock; requests arriving during the window ride
// along without pushing the deadline back.
func (q *Queue) Enqueue(ctx context.Context, userID, partnerID string) error {
	if userID == "" {
		return common.NewUserError("user id is required", nil)
	}
	if partnerID == "" {
		return common.NewUserError("partner id is required", nil)
	}

	if err := q.storage.EnqueueLearning(ctx, userID, partnerID, time.Now().Add(q.debounce)); err != nil {
		return fmt.Errorf("failed to enqueue learning: %w", err)
	}
	q.logger.Debug("queued partner for learning", "user_id", userID, "partner_id", partnerID)
	return nil
}

// Sweep drains every queue whose deadline has passed. Intended to run from a
// timer; overlapping sweeps are safe because each queue is claimed atomically
// and a lost claim is skipped.
func (q *Queue) Sweep(ctx context.Context) (service.LearnStats, error) {
	var total service.LearnStats

	queues, err := q.storage.GetDueLearningQueues(ctx, time.Now())
	if err != nil {
		return total, fmt.Errorf("failed to load due queues: %w", err)
	}

	for i := range queues {
		stats, err := q.drain(ctx, &queues[i])
		total.Add(stats)
		if err != nil {
			q.logger.Warn("queue drain failed", "user_id", queues[i].UserID, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return total, nil
}

// drain claims one user's queue and learns each pending partner in turn.
// Partners whose run fails transiently stay pending for the next sweep;
// requests the workflow rejects as invalid are dropped, since retrying cannot
// fix them. Re-learning an already-processed partner is an idempotent no-op,
// so a sweep interrupted mid-batch needs no progress tracking beyond the
// pending list.
func (q *Queue) drain(ctx context.Context, queue *model.LearningQueue) (service.LearnStats, error) {
	var stats service.LearnStats

	won, err := q.storage.ClaimLearningQueue(ctx, queue.UserID)
	if err != nil {
		return stats, fmt.Errorf("failed to claim queue: %w", err)
	}
	if !won {
		q.logger.Debug("queue already claimed", "user_id", queue.UserID)
		return stats, nil
	}

	processed := make([]string, 0, len(queue.PendingPartnerIDs))
	for _, partnerID := range queue.PendingPartnerIDs {
		if ctx.Err() != nil {
			break
		}

		partnerStats, err := q.workflow.LearnPartnerPatterns(ctx, queue.UserID, partnerID, "")
		if err != nil {
			stats.Failures++
			var userErr *common.UserError
			if errors.As(err, &userErr) {
				processed = append(processed, partnerID)
				q.logger.Warn("dropping invalid learning request",
					"user_id", queue.UserID, "partner_id", partnerID, "error", err)
			} else {
				q.logger.Warn("partner learning failed",
					"user_id", queue.UserID, "partner_id", partnerID, "error", err)
			}
			continue
		}

		stats.Add(partnerStats)
		processed = append(processed, partnerID)
	}

	// The claim must be released even when the sweep was canceled.
	release := context.WithoutCancel(ctx)
	if err := q.storage.CompleteLearningQueue(release, queue.UserID, processed); err != nil {
		return stats, fmt.Errorf("failed to release queue: %w", err)
	}
	return stats, nil
}
