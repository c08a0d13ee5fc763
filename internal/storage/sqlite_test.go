package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test transactions.
func createTestTransactions(count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			ID:          makeTestID("txn", i+1),
			UserID:      "user-1",
			Date:        baseTime.Add(time.Duration(i) * time.Hour),
			AmountMinor: int64(-(i + 1) * 1050),
			Currency:    "EUR",
			Name:        makeTestName("Payment", i+1),
			Partner:     makeTestName("Counterparty", (i%3)+1),
			Reference:   makeTestName("RE", i+1),
		}
	}
	return txns
}

func makeTestID(prefix string, num int) string {
	return prefix + "-" + padNum(num)
}

func makeTestName(prefix string, num int) string {
	return prefix + " " + padNum(num)
}

// padNum formats a number with leading zeros so lexicographic ID order matches
// numeric order, which the cursor scan relies on.
func padNum(num int) string {
	digits := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && num > 0; i-- {
		digits[i] = byte('0' + num%10)
		num /= 10
	}
	return string(digits)
}

func createTestPartner(id, userID, name string) *model.Partner {
	return &model.Partner{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Type:     model.PartnerTypeUser,
		IsActive: true,
	}
}

func TestNewSQLiteStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{
			name:    "empty path",
			dbPath:  "",
			wantErr: true,
		},
		{
			name:    "whitespace path",
			dbPath:  "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSQLiteStorage(tt.dbPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSQLiteStorage(%q) error = %v, wantErr %v", tt.dbPath, err, tt.wantErr)
			}
		})
	}
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dirs", "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage in nested directory: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
}

func TestSQLiteStorage_BeginTx_Commit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	partner := createTestPartner("p1", "user-1", "ACME GmbH")
	if err := tx.SavePartner(ctx, partner); err != nil {
		t.Fatalf("Failed to save partner in transaction: %v", err)
	}

	// Reading through the storage while the transaction holds the single
	// pooled connection would block, so verification happens after commit.
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	got, err := store.GetPartner(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get committed partner: %v", err)
	}
	if got.Name != "ACME GmbH" {
		t.Errorf("Committed partner name = %q, want %q", got.Name, "ACME GmbH")
	}
}

func TestSQLiteStorage_BeginTx_Rollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	partner := createTestPartner("p1", "user-1", "ACME GmbH")
	if err := tx.SavePartner(ctx, partner); err != nil {
		t.Fatalf("Failed to save partner in transaction: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	_, err = store.GetPartner(ctx, "p1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetPartner after rollback error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_TransactionGuards(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Migrate(ctx); err == nil {
		t.Error("Migrate inside transaction should fail")
	}
	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("Nested BeginTx should fail")
	}
	if err := tx.Close(); err == nil {
		t.Error("Close inside transaction should fail")
	}
}

func TestSQLiteStorage_TransactionReadsOwnWrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	err := func() error {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		partner := createTestPartner("p1", "user-1", "ACME GmbH")
		if err := tx.SavePartner(ctx, partner); err != nil {
			return err
		}

		got, err := tx.GetPartner(ctx, "p1")
		if err != nil {
			return err
		}
		if got.Name != "ACME GmbH" {
			t.Errorf("In-transaction read name = %q, want %q", got.Name, "ACME GmbH")
		}

		txns := createTestTransactions(2)
		if err := tx.SaveTransactions(ctx, txns); err != nil {
			return err
		}

		count, err := tx.CountTransactions(ctx, "user-1")
		if err != nil {
			return err
		}
		if count != 2 {
			t.Errorf("In-transaction count = %d, want 2", count)
		}

		return tx.Commit()
	}()
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	count, err := store.CountTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to count after commit: %v", err)
	}
	if count != 2 {
		t.Errorf("Post-commit count = %d, want 2", count)
	}
}
