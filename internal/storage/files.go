package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
)

// fileColumns is the column list every file query selects, in scanFile order.
const fileColumns = `id, user_id, partner_name, vat_id, iban, website, amount_minor, date,
	currency, raw_text, transaction_ids, created_at`

// SaveFile inserts or updates a stored document. A missing ID is generated.
func (s *SQLiteStorage) SaveFile(ctx context.Context, file *model.File) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFile(file); err != nil {
		return err
	}
	return s.saveFileTx(ctx, s.db, file)
}

func (s *SQLiteStorage) saveFileTx(ctx context.Context, q queryable, file *model.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}

	var amount any
	if file.AmountMinor != nil {
		amount = *file.AmountMinor
	}
	var date any
	if file.Date != nil {
		date = *file.Date
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO files (
			id, user_id, partner_name, vat_id, iban, website, amount_minor, date,
			currency, raw_text, transaction_ids, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_name = excluded.partner_name,
			vat_id = excluded.vat_id,
			iban = excluded.iban,
			website = excluded.website,
			amount_minor = excluded.amount_minor,
			date = excluded.date,
			currency = excluded.currency,
			raw_text = excluded.raw_text
	`,
		file.ID,
		file.UserID,
		file.PartnerName,
		file.VATID,
		file.IBAN,
		file.Website,
		amount,
		date,
		file.Currency,
		file.RawText,
		marshalStringList(file.TransactionIDs),
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	return nil
}

// GetFile retrieves a stored document by ID.
func (s *SQLiteStorage) GetFile(ctx context.Context, id string) (*model.File, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getFileTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getFileTx(ctx context.Context, q queryable, id string) (*model.File, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+fileColumns+` FROM files WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query file: %w", err)
		}
		return nil, common.ErrNotFound
	}

	file, err := scanFile(rows)
	if err != nil {
		return nil, err
	}
	return file, rows.Err()
}

// AttachFileToTransaction links a document and a transaction to each other.
// Linking the same pair twice is a no-op.
func (s *SQLiteStorage) AttachFileToTransaction(ctx context.Context, fileID, transactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(fileID, "fileID"); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.attachFileToTransactionTx(ctx, tx, fileID, transactionID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) attachFileToTransactionTx(ctx context.Context, q queryable, fileID, transactionID string) error {
	file, err := s.getFileTx(ctx, q, fileID)
	if err != nil {
		return err
	}
	txn, err := s.getTransactionTx(ctx, q, transactionID)
	if err != nil {
		return err
	}

	if !slices.Contains(file.TransactionIDs, transactionID) {
		file.TransactionIDs = append(file.TransactionIDs, transactionID)
		if _, err := q.ExecContext(ctx, `
			UPDATE files SET transaction_ids = ? WHERE id = ?
		`, marshalStringList(file.TransactionIDs), fileID); err != nil {
			return fmt.Errorf("failed to update file links: %w", err)
		}
	}

	if !slices.Contains(txn.FileIDs, fileID) {
		txn.FileIDs = append(txn.FileIDs, fileID)
		if _, err := q.ExecContext(ctx, `
			UPDATE transactions SET file_ids = ?, updated_at = ? WHERE id = ?
		`, marshalStringList(txn.FileIDs), time.Now(), transactionID); err != nil {
			return fmt.Errorf("failed to update transaction links: %w", err)
		}
	}

	return nil
}

func scanFile(rows *sql.Rows) (*model.File, error) {
	var f model.File
	var amount sql.NullInt64
	var date sql.NullTime
	var transactionIDs sql.NullString

	err := rows.Scan(
		&f.ID,
		&f.UserID,
		&f.PartnerName,
		&f.VATID,
		&f.IBAN,
		&f.Website,
		&amount,
		&date,
		&f.Currency,
		&f.RawText,
		&transactionIDs,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	if amount.Valid {
		v := amount.Int64
		f.AmountMinor = &v
	}
	if date.Valid {
		v := date.Time
		f.Date = &v
	}
	f.TransactionIDs = parseStringList(transactionIDs)

	return &f, nil
}
