package model

import "time"

// QueueStatus is the processing state of a user's learning queue.
type QueueStatus string

const (
	// QueueStatusIdle means the queue is waiting for its debounce deadline.
	QueueStatusIdle QueueStatus = "idle"
	// QueueStatusProcessing means a sweep has claimed the queue.
	QueueStatusProcessing QueueStatus = "processing"
)

// LearningQueue coalesces repeated learning requests for one user into a
// single delayed batch. There is one row per user.
type LearningQueue struct {
	ProcessAfter      time.Time
	UpdatedAt         time.Time
	UserID            string
	Status            QueueStatus
	PendingPartnerIDs []string
}

// Due reports whether a sweep at the given instant should pick this queue up.
func (q *LearningQueue) Due(now time.Time) bool {
	if len(q.PendingPartnerIDs) == 0 {
		return false
	}
	if q.Status != QueueStatusIdle {
		return false
	}
	return !now.Before(q.ProcessAfter)
}
