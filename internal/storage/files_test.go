package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
)

func createTestFile(id, partnerName string) *model.File {
	amount := int64(-4299)
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.File{
		ID:          id,
		UserID:      "user-1",
		PartnerName: partnerName,
		AmountMinor: &amount,
		Date:        &date,
		Currency:    "EUR",
		RawText:     "Rechnung " + partnerName,
	}
}

func TestSQLiteStorage_SaveFile(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	file := createTestFile("f1", "ACME GmbH")
	file.VATID = "DE123456789"
	file.IBAN = "DE02120300000000202051"
	file.Website = "acme.de"

	if err := store.SaveFile(ctx, file); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	got, err := store.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.PartnerName != "ACME GmbH" {
		t.Errorf("PartnerName = %q, want %q", got.PartnerName, "ACME GmbH")
	}
	if got.VATID != "DE123456789" {
		t.Errorf("VATID = %q, want %q", got.VATID, "DE123456789")
	}
	if got.AmountMinor == nil || *got.AmountMinor != -4299 {
		t.Errorf("AmountMinor = %v, want -4299", got.AmountMinor)
	}
	if got.Date == nil || !got.Date.Equal(*file.Date) {
		t.Errorf("Date = %v, want %v", got.Date, file.Date)
	}
	if got.RawText != "Rechnung ACME GmbH" {
		t.Errorf("RawText = %q, want %q", got.RawText, "Rechnung ACME GmbH")
	}
}

func TestSQLiteStorage_SaveFile_OptionalFields(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Extraction found nothing but raw text.
	file := &model.File{
		ID:      "f1",
		UserID:  "user-1",
		RawText: "unleserlicher Scan",
	}
	if err := store.SaveFile(ctx, file); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	got, err := store.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.AmountMinor != nil {
		t.Errorf("AmountMinor = %v, want nil", got.AmountMinor)
	}
	if got.Date != nil {
		t.Errorf("Date = %v, want nil", got.Date)
	}
	if got.PartnerName != "" {
		t.Errorf("PartnerName = %q, want empty", got.PartnerName)
	}
}

func TestSQLiteStorage_SaveFile_GeneratesID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	file := createTestFile("", "ACME GmbH")
	if err := store.SaveFile(ctx, file); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if file.ID == "" {
		t.Fatal("SaveFile did not generate an ID")
	}

	if _, err := store.GetFile(ctx, file.ID); err != nil {
		t.Errorf("GetFile(%s) error = %v", file.ID, err)
	}
}

func TestSQLiteStorage_SaveFile_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveFile(ctx, nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("SaveFile(nil) error = %v, want ErrNilParameter", err)
	}
	if err := store.SaveFile(ctx, &model.File{ID: "f1"}); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("SaveFile(no user) error = %v, want ErrInvalidFile", err)
	}
}

func TestSQLiteStorage_GetFile_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetFile(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetFile() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_AttachFileToTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveFile(ctx, createTestFile("f1", "ACME GmbH")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	txns := createTestTransactions(1)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}

	if err := store.AttachFileToTransaction(ctx, "f1", txns[0].ID); err != nil {
		t.Fatalf("AttachFileToTransaction() error = %v", err)
	}

	// Attaching the same pair again must not duplicate the link.
	if err := store.AttachFileToTransaction(ctx, "f1", txns[0].ID); err != nil {
		t.Fatalf("AttachFileToTransaction() repeat error = %v", err)
	}

	file, err := store.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if len(file.TransactionIDs) != 1 || file.TransactionIDs[0] != txns[0].ID {
		t.Errorf("File transaction links = %v, want [%s]", file.TransactionIDs, txns[0].ID)
	}

	txn, err := store.GetTransaction(ctx, txns[0].ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if len(txn.FileIDs) != 1 || txn.FileIDs[0] != "f1" {
		t.Errorf("Transaction file links = %v, want [f1]", txn.FileIDs)
	}
}

func TestSQLiteStorage_AttachFileToTransaction_ManyToMany(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveFile(ctx, createTestFile("f1", "ACME GmbH")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if err := store.SaveFile(ctx, createTestFile("f2", "ACME GmbH")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	txns := createTestTransactions(2)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}

	// One collective invoice covers two transactions, and one transaction
	// pays two invoices.
	links := [][2]string{
		{"f1", txns[0].ID},
		{"f1", txns[1].ID},
		{"f2", txns[0].ID},
	}
	for _, link := range links {
		if err := store.AttachFileToTransaction(ctx, link[0], link[1]); err != nil {
			t.Fatalf("AttachFileToTransaction(%s, %s) error = %v", link[0], link[1], err)
		}
	}

	file, err := store.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if len(file.TransactionIDs) != 2 {
		t.Errorf("File f1 linked to %d transactions, want 2", len(file.TransactionIDs))
	}

	txn, err := store.GetTransaction(ctx, txns[0].ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if len(txn.FileIDs) != 2 {
		t.Errorf("Transaction linked to %d files, want 2", len(txn.FileIDs))
	}
}

func TestSQLiteStorage_AttachFileToTransaction_Missing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions(1)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}
	if err := store.SaveFile(ctx, createTestFile("f1", "ACME GmbH")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	if err := store.AttachFileToTransaction(ctx, "missing", txns[0].ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("AttachFileToTransaction(missing file) error = %v, want ErrNotFound", err)
	}
	if err := store.AttachFileToTransaction(ctx, "f1", "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("AttachFileToTransaction(missing transaction) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_SaveFile_Update(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	file := createTestFile("f1", "ACME")
	if err := store.SaveFile(ctx, file); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	txns := createTestTransactions(1)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}
	if err := store.AttachFileToTransaction(ctx, "f1", txns[0].ID); err != nil {
		t.Fatalf("AttachFileToTransaction() error = %v", err)
	}

	// Re-running extraction refreshes the fields but keeps the links.
	file.PartnerName = "ACME GmbH"
	if err := store.SaveFile(ctx, file); err != nil {
		t.Fatalf("SaveFile() update error = %v", err)
	}

	got, err := store.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.PartnerName != "ACME GmbH" {
		t.Errorf("PartnerName = %q, want refreshed %q", got.PartnerName, "ACME GmbH")
	}
	if len(got.TransactionIDs) != 1 {
		t.Errorf("Transaction links lost on update: %v", got.TransactionIDs)
	}
}
