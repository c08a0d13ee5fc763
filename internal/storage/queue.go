package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
)

// EnqueueLearning adds a partner to the user's learning queue. The debounce
// deadline is set only when the queue was empty; later enqueues never push it
// back (first arrival wins).
func (s *SQLiteStorage) EnqueueLearning(ctx context.Context, userID, partnerID string, processAfter time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.enqueueLearningTx(ctx, tx, userID, partnerID, processAfter); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) enqueueLearningTx(ctx context.Context, q queryable, userID, partnerID string, processAfter time.Time) error {
	var pending sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT pending_partner_ids FROM learning_queue WHERE user_id = ?
	`, userID).Scan(&pending)

	now := time.Now()

	if errors.Is(err, sql.ErrNoRows) {
		_, err = q.ExecContext(ctx, `
			INSERT INTO learning_queue (user_id, pending_partner_ids, process_after, status, updated_at)
			VALUES (?, ?, ?, 'idle', ?)
		`, userID, marshalStringList([]string{partnerID}), processAfter, now)
		if err != nil {
			return fmt.Errorf("failed to create learning queue: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read learning queue: %w", err)
	}

	ids := parseStringList(pending)
	wasEmpty := len(ids) == 0
	if !slices.Contains(ids, partnerID) {
		ids = append(ids, partnerID)
	}

	if wasEmpty {
		_, err = q.ExecContext(ctx, `
			UPDATE learning_queue
			SET pending_partner_ids = ?, process_after = ?, updated_at = ?
			WHERE user_id = ?
		`, marshalStringList(ids), processAfter, now, userID)
	} else {
		_, err = q.ExecContext(ctx, `
			UPDATE learning_queue
			SET pending_partner_ids = ?, updated_at = ?
			WHERE user_id = ?
		`, marshalStringList(ids), now, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update learning queue: %w", err)
	}

	return nil
}

// GetLearningQueue retrieves a user's learning queue row.
func (s *SQLiteStorage) GetLearningQueue(ctx context.Context, userID string) (*model.LearningQueue, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getLearningQueueTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getLearningQueueTx(ctx context.Context, q queryable, userID string) (*model.LearningQueue, error) {
	queues, err := s.queryLearningQueues(ctx, q, `
		SELECT user_id, pending_partner_ids, process_after, status, updated_at
		FROM learning_queue
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	if len(queues) == 0 {
		return nil, common.ErrNotFound
	}
	return &queues[0], nil
}

// GetDueLearningQueues retrieves every idle queue whose debounce deadline has
// passed and that has partners pending.
func (s *SQLiteStorage) GetDueLearningQueues(ctx context.Context, now time.Time) ([]model.LearningQueue, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getDueLearningQueuesTx(ctx, s.db, now)
}

func (s *SQLiteStorage) getDueLearningQueuesTx(ctx context.Context, q queryable, now time.Time) ([]model.LearningQueue, error) {
	queues, err := s.queryLearningQueues(ctx, q, `
		SELECT user_id, pending_partner_ids, process_after, status, updated_at
		FROM learning_queue
		WHERE status = 'idle' AND process_after <= ?
		ORDER BY process_after
	`, now)
	if err != nil {
		return nil, err
	}

	due := make([]model.LearningQueue, 0, len(queues))
	for _, queue := range queues {
		if queue.Due(now) {
			due = append(due, queue)
		}
	}
	return due, nil
}

// ClaimLearningQueue atomically flips a queue from idle to processing and
// reports whether this caller won the flip. A concurrent sweep that lost gets
// false and must not process the queue.
func (s *SQLiteStorage) ClaimLearningQueue(ctx context.Context, userID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return false, err
	}
	return s.claimLearningQueueTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) claimLearningQueueTx(ctx context.Context, q queryable, userID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE learning_queue
		SET status = 'processing', updated_at = ?
		WHERE user_id = ? AND status = 'idle'
	`, time.Now(), userID)
	if err != nil {
		return false, fmt.Errorf("failed to claim learning queue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// CompleteLearningQueue removes the processed partners from the queue and
// returns it to idle. Passing no processed partners releases the claim with
// the pending set intact, so the next sweep retries.
func (s *SQLiteStorage) CompleteLearningQueue(ctx context.Context, userID string, processed []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.completeLearningQueueTx(ctx, tx, userID, processed); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) completeLearningQueueTx(ctx context.Context, q queryable, userID string, processed []string) error {
	var pending sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT pending_partner_ids FROM learning_queue WHERE user_id = ?
	`, userID).Scan(&pending)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read learning queue: %w", err)
	}

	var remaining []string
	for _, id := range parseStringList(pending) {
		if !slices.Contains(processed, id) {
			remaining = append(remaining, id)
		}
	}

	_, err = q.ExecContext(ctx, `
		UPDATE learning_queue
		SET pending_partner_ids = ?, status = 'idle', updated_at = ?
		WHERE user_id = ?
	`, marshalStringList(remaining), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to complete learning queue: %w", err)
	}

	return nil
}

// queryLearningQueues runs a queue query and scans all rows.
func (s *SQLiteStorage) queryLearningQueues(ctx context.Context, q queryable, query string, args ...any) ([]model.LearningQueue, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning queues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var queues []model.LearningQueue
	for rows.Next() {
		var queue model.LearningQueue
		var pending sql.NullString
		var processAfter sql.NullTime
		var status string

		if err := rows.Scan(&queue.UserID, &pending, &processAfter, &status, &queue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learning queue: %w", err)
		}

		queue.PendingPartnerIDs = parseStringList(pending)
		queue.ProcessAfter = processAfter.Time
		queue.Status = model.QueueStatus(status)
		queues = append(queues, queue)
	}

	return queues, rows.Err()
}
