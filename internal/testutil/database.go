// Package testutil provides shared test infrastructure for tests that need a
// real database. It offers isolated storage per test, automatic cleanup, and
// canonical fixture data for partners and transactions.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
	"github.com/kontoworks/konto/internal/storage"
)

// TestDB represents a migrated test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database, runs migrations, and
// registers cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedPartners saves the given partners, failing the test on error.
func (db *TestDB) SeedPartners(ctx context.Context, partners ...*model.Partner) {
	db.t.Helper()
	for _, p := range partners {
		if err := db.Storage.SavePartner(ctx, p); err != nil {
			db.t.Fatalf("failed to seed partner %q: %v", p.Name, err)
		}
	}
}

// SeedCategories saves the given no-receipt categories, failing the test on
// error.
func (db *TestDB) SeedCategories(ctx context.Context, categories ...*model.Category) {
	db.t.Helper()
	for _, c := range categories {
		if err := db.Storage.SaveCategory(ctx, c); err != nil {
			db.t.Fatalf("failed to seed category %q: %v", c.Name, err)
		}
	}
}

// SeedTransactions saves the given transactions, failing the test on error.
func (db *TestDB) SeedTransactions(ctx context.Context, txns ...model.Transaction) {
	db.t.Helper()
	if err := db.Storage.SaveTransactions(ctx, txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// AssignTransactions writes partner assignments for already-seeded
// transactions, failing the test on error.
func (db *TestDB) AssignTransactions(ctx context.Context, txns ...model.Transaction) {
	db.t.Helper()
	if err := db.Storage.SaveMatchResults(ctx, txns); err != nil {
		db.t.Fatalf("failed to assign transactions: %v", err)
	}
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
