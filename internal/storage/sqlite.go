package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite. It holds no
// state beyond the connection: all cross-invocation state lives in the
// database so concurrent invocations coordinate through it.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SavePartner(ctx context.Context, partner *model.Partner) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePartner(partner); err != nil {
		return err
	}
	return t.storage.savePartnerTx(ctx, t.tx, partner)
}

func (t *sqliteTransaction) GetPartner(ctx context.Context, id string) (*model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getPartnerTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetPartnersByUser(ctx context.Context, userID string) ([]model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getPartnersByUserTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetGlobalPartners(ctx context.Context) ([]model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getGlobalPartnersTx(ctx, t.tx)
}

func (t *sqliteTransaction) DeactivatePartner(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deactivatePartnerTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ReplacePartnerPatterns(ctx context.Context, partnerID string, patterns []model.LearnedPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}
	if err := validatePatterns(patterns); err != nil {
		return err
	}
	return t.storage.replacePatternsTx(ctx, t.tx, ownerKindPartner, partnerID, patterns)
}

func (t *sqliteTransaction) AddManualRemoval(ctx context.Context, partnerID string, removal model.ManualRemoval) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}
	if err := validateRemoval(removal); err != nil {
		return err
	}
	return t.storage.addManualRemovalTx(ctx, t.tx, partnerID, removal)
}

func (t *sqliteTransaction) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return t.storage.saveCategoryTx(ctx, t.tx, category)
}

func (t *sqliteTransaction) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getCategoryTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetCategoriesByUser(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getCategoriesByUserTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) ReplaceCategoryPatterns(ctx context.Context, categoryID string, patterns []model.LearnedPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return err
	}
	if err := validatePatterns(patterns); err != nil {
		return err
	}
	return t.storage.replacePatternsTx(ctx, t.tx, ownerKindCategory, categoryID, patterns)
}

func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return t.storage.getTransactionsByIDsTx(ctx, t.tx, userID, ids)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, userID, filter)
}

func (t *sqliteTransaction) ScanTransactions(ctx context.Context, userID string, cursor string, limit int) ([]model.Transaction, string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", fmt.Errorf("scan limit must be positive, got %d", limit)
	}
	return t.storage.scanTransactionsTx(ctx, t.tx, userID, cursor, limit)
}

func (t *sqliteTransaction) CountTransactions(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	return t.storage.countTransactionsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetConfirmedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return t.storage.getConfirmedTransactionsTx(ctx, t.tx, userID, partnerID)
}

func (t *sqliteTransaction) GetCollisionSamples(ctx context.Context, userID string, excludePartnerIDs []string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	return t.storage.getCollisionSamplesTx(ctx, t.tx, userID, excludePartnerIDs, limit)
}

func (t *sqliteTransaction) GetAutoAssignedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return t.storage.getAutoAssignedTransactionsTx(ctx, t.tx, userID, partnerID)
}

func (t *sqliteTransaction) SaveMatchResults(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}
	return t.storage.saveMatchResultsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) UnassignTransactions(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return t.storage.unassignTransactionsTx(ctx, t.tx, ids)
}

func (t *sqliteTransaction) SaveFile(ctx context.Context, file *model.File) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFile(file); err != nil {
		return err
	}
	return t.storage.saveFileTx(ctx, t.tx, file)
}

func (t *sqliteTransaction) GetFile(ctx context.Context, id string) (*model.File, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getFileTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) AttachFileToTransaction(ctx context.Context, fileID, transactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(fileID, "fileID"); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	return t.storage.attachFileToTransactionTx(ctx, t.tx, fileID, transactionID)
}

func (t *sqliteTransaction) EnqueueLearning(ctx context.Context, userID, partnerID string, processAfter time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}
	return t.storage.enqueueLearningTx(ctx, t.tx, userID, partnerID, processAfter)
}

func (t *sqliteTransaction) GetLearningQueue(ctx context.Context, userID string) (*model.LearningQueue, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getLearningQueueTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetDueLearningQueues(ctx context.Context, now time.Time) ([]model.LearningQueue, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getDueLearningQueuesTx(ctx, t.tx, now)
}

func (t *sqliteTransaction) ClaimLearningQueue(ctx context.Context, userID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return false, err
	}
	return t.storage.claimLearningQueueTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) CompleteLearningQueue(ctx context.Context, userID string, processed []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	return t.storage.completeLearningQueueTx(ctx, t.tx, userID, processed)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
