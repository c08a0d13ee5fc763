// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kontoworks/konto/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	Query      string
	ExcludeIDs []string
	Limit      int
	Unassigned bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Partner operations
	SavePartner(ctx context.Context, partner *model.Partner) error
	GetPartner(ctx context.Context, id string) (*model.Partner, error)
	GetPartnersByUser(ctx context.Context, userID string) ([]model.Partner, error)
	GetGlobalPartners(ctx context.Context) ([]model.Partner, error)
	DeactivatePartner(ctx context.Context, id string) error
	ReplacePartnerPatterns(ctx context.Context, partnerID string, patterns []model.LearnedPattern) error
	AddManualRemoval(ctx context.Context, partnerID string, removal model.ManualRemoval) error

	// Category operations
	SaveCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetCategoriesByUser(ctx context.Context, userID string) ([]model.Category, error)
	ReplaceCategoryPatterns(ctx context.Context, categoryID string, patterns []model.LearnedPattern) error

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error)
	GetTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	ScanTransactions(ctx context.Context, userID string, cursor string, limit int) ([]model.Transaction, string, error)
	CountTransactions(ctx context.Context, userID string) (int, error)
	GetConfirmedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error)
	GetCollisionSamples(ctx context.Context, userID string, excludePartnerIDs []string, limit int) ([]model.Transaction, error)
	GetAutoAssignedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error)
	SaveMatchResults(ctx context.Context, transactions []model.Transaction) error
	UnassignTransactions(ctx context.Context, ids []string) error

	// File operations
	SaveFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, id string) (*model.File, error)
	AttachFileToTransaction(ctx context.Context, fileID, transactionID string) error

	// Learning queue operations
	EnqueueLearning(ctx context.Context, userID, partnerID string, processAfter time.Time) error
	GetLearningQueue(ctx context.Context, userID string) (*model.LearningQueue, error)
	GetDueLearningQueues(ctx context.Context, now time.Time) ([]model.LearningQueue, error)
	ClaimLearningQueue(ctx context.Context, userID string) (bool, error)
	CompleteLearningQueue(ctx context.Context, userID string, processed []string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// Notifier delivers user-facing notices about learning outcomes. Delivery is
// out of scope here; the default implementation logs.
type Notifier interface {
	PatternsLearned(ctx context.Context, partner *model.Partner, added int) error
	PatternsCleared(ctx context.Context, partner *model.Partner, unassigned int) error
}

// MatchStats shows the results of a matching run.
type MatchStats struct {
	Scanned     int
	AutoApplied int
	Suggested   int
}

// LearnStats shows the results of a pattern-learning run.
type LearnStats struct {
	PartnersProcessed int
	PatternsProposed  int
	PatternsKept      int
	Unassigned        int
	Failures          int
}

// Add accumulates another run's counters.
func (s *LearnStats) Add(other LearnStats) {
	s.PartnersProcessed += other.PartnersProcessed
	s.PatternsProposed += other.PatternsProposed
	s.PatternsKept += other.PatternsKept
	s.Unassigned += other.Unassigned
	s.Failures += other.Failures
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
