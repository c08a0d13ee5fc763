package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// batchSize caps how many rows a single SQL transaction writes. Larger
// mutations are chunked and committed incrementally.
const batchSize = 500

// transactionColumns is the column list every transaction query selects, in
// scanTransaction order.
const transactionColumns = `id, user_id, date, amount_minor, currency, name, partner, reference, partner_iban,
	partner_id, partner_type, partner_match_confidence, partner_matched_by, suggestions, file_ids, no_receipt_category_id`

// SaveTransactions inserts or refreshes bank transactions. Raw bank fields are
// updated on conflict; the assignment block is never touched so a re-sync
// cannot clobber matching state.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	for start := 0; start < len(transactions); start += batchSize {
		end := min(start+batchSize, len(transactions))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := s.saveTransactionsTx(ctx, tx, transactions[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction batch: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, user_id, date, amount_minor, currency, name, partner, reference, partner_iban, file_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			amount_minor = excluded.amount_minor,
			currency = excluded.currency,
			name = excluded.name,
			partner = excluded.partner,
			reference = excluded.reference,
			partner_iban = excluded.partner_iban,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.UserID,
			txn.Date,
			txn.AmountMinor,
			txn.Currency,
			txn.Name,
			txn.Partner,
			txn.Reference,
			txn.PartnerIBAN,
			marshalStringList(txn.FileIDs),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return nil
}

// GetTransaction retrieves a single transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	transactions, err := s.queryTransactions(ctx, q, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, common.ErrNotFound
	}
	return &transactions[0], nil
}

// GetTransactionsByIDs retrieves the given transactions, scoped to one user.
// Unknown IDs are silently skipped.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.getTransactionsByIDsTx(ctx, s.db, userID, ids)
}

func (s *SQLiteStorage) getTransactionsByIDsTx(ctx context.Context, q queryable, userID string, ids []string) ([]model.Transaction, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	return s.queryTransactions(ctx, q, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)
		ORDER BY date DESC, id
	`, args...)
}

// GetTransactions retrieves a user's transactions matching the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, userID, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	if filter.Query != "" {
		query += ` AND (name LIKE ? OR partner LIKE ? OR reference LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like, like)
	}
	if len(filter.ExcludeIDs) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(filter.ExcludeIDs)) + `)`
		for _, id := range filter.ExcludeIDs {
			args = append(args, id)
		}
	}
	if filter.Unassigned {
		query += ` AND (partner_id IS NULL OR partner_id = '')`
	}

	query += ` ORDER BY date DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, q, query, args...)
}

// ScanTransactions pages through a user's full transaction corpus in stable ID
// order. Pass the returned cursor to fetch the next page; an empty cursor
// means the scan is complete.
func (s *SQLiteStorage) ScanTransactions(ctx context.Context, userID string, cursor string, limit int) ([]model.Transaction, string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", fmt.Errorf("scan limit must be positive, got %d", limit)
	}
	return s.scanTransactionsTx(ctx, s.db, userID, cursor, limit)
}

func (s *SQLiteStorage) scanTransactionsTx(ctx context.Context, q queryable, userID string, cursor string, limit int) ([]model.Transaction, string, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if cursor != "" {
		query += ` AND id > ?`
		args = append(args, cursor)
	}

	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	transactions, err := s.queryTransactions(ctx, q, query, args...)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(transactions) == limit {
		next = transactions[len(transactions)-1].ID
	}
	return transactions, next, nil
}

// CountTransactions returns the total number of transactions for a user.
func (s *SQLiteStorage) CountTransactions(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	return s.countTransactionsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) countTransactionsTx(ctx context.Context, q queryable, userID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetConfirmedTransactions retrieves the transactions a user assigned to the
// partner directly or by accepting a suggestion. Auto-derived assignments are
// excluded so imprecise rules cannot teach themselves.
func (s *SQLiteStorage) GetConfirmedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return s.getConfirmedTransactionsTx(ctx, s.db, userID, partnerID)
}

func (s *SQLiteStorage) getConfirmedTransactionsTx(ctx context.Context, q queryable, userID, partnerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, q, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND partner_id = ?
		  AND partner_matched_by IN ('manual', 'suggestion', 'ai')
		ORDER BY date DESC, id
	`, userID, partnerID)
}

// GetCollisionSamples retrieves transactions assigned to partners other than
// the excluded ones, newest first, capped at limit. These are the negative
// examples for pattern learning.
func (s *SQLiteStorage) GetCollisionSamples(ctx context.Context, userID string, excludePartnerIDs []string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	return s.getCollisionSamplesTx(ctx, s.db, userID, excludePartnerIDs, limit)
}

func (s *SQLiteStorage) getCollisionSamplesTx(ctx context.Context, q queryable, userID string, excludePartnerIDs []string, limit int) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND partner_id IS NOT NULL AND partner_id != ''`
	args := []any{userID}

	if len(excludePartnerIDs) > 0 {
		query += ` AND partner_id NOT IN (` + placeholders(len(excludePartnerIDs)) + `)`
		for _, id := range excludePartnerIDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY date DESC, id LIMIT ?`
	args = append(args, limit)

	return s.queryTransactions(ctx, q, query, args...)
}

// GetAutoAssignedTransactions retrieves the partner's revocable assignments:
// those derived from signals plus legacy rows that predate match tracking.
func (s *SQLiteStorage) GetAutoAssignedTransactions(ctx context.Context, userID, partnerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return s.getAutoAssignedTransactionsTx(ctx, s.db, userID, partnerID)
}

func (s *SQLiteStorage) getAutoAssignedTransactionsTx(ctx context.Context, q queryable, userID, partnerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, q, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND partner_id = ?
		  AND (partner_matched_by = 'auto' OR partner_matched_by IS NULL OR partner_matched_by = '')
		ORDER BY date DESC, id
	`, userID, partnerID)
}

// SaveMatchResults persists the assignment block and suggestion list of each
// transaction, chunked at the batch cap.
func (s *SQLiteStorage) SaveMatchResults(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	for start := 0; start < len(transactions); start += batchSize {
		end := min(start+batchSize, len(transactions))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := s.saveMatchResultsTx(ctx, tx, transactions[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit match results: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) saveMatchResultsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions SET
			partner_id = ?,
			partner_type = ?,
			partner_match_confidence = ?,
			partner_matched_by = ?,
			no_receipt_category_id = ?,
			suggestions = ?,
			updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, txn := range transactions {
		var confidence any
		if txn.PartnerID != "" {
			confidence = txn.PartnerMatchConfidence
		}

		_, err = stmt.ExecContext(ctx,
			nullIfEmpty(txn.PartnerID),
			nullIfEmpty(string(txn.PartnerType)),
			confidence,
			nullIfEmpty(string(txn.PartnerMatchedBy)),
			nullIfEmpty(txn.NoReceiptCategoryID),
			nullIfEmpty(marshalSuggestions(txn.PartnerSuggestions)),
			now,
			txn.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to save match result for %s: %w", txn.ID, err)
		}
	}

	return nil
}

// UnassignTransactions clears the partner assignment of the given
// transactions, chunked at the batch cap. Suggestions are left in place.
func (s *SQLiteStorage) UnassignTransactions(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := s.unassignTransactionsTx(ctx, tx, ids[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit unassignment: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) unassignTransactionsTx(ctx context.Context, q queryable, ids []string) error {
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := q.ExecContext(ctx, `
		UPDATE transactions SET
			partner_id = NULL,
			partner_type = NULL,
			partner_match_confidence = NULL,
			partner_matched_by = NULL,
			updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to unassign transactions: %w", err)
	}
	return nil
}

// queryTransactions runs a transaction query and scans all rows.
func (s *SQLiteStorage) queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (model.Transaction, error) {
	var txn model.Transaction
	var partnerID, partnerType, matchedBy, suggestionsJSON, fileIDs, categoryID sql.NullString
	var confidence sql.NullInt64

	err := rows.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Date,
		&txn.AmountMinor,
		&txn.Currency,
		&txn.Name,
		&txn.Partner,
		&txn.Reference,
		&txn.PartnerIBAN,
		&partnerID,
		&partnerType,
		&confidence,
		&matchedBy,
		&suggestionsJSON,
		&fileIDs,
		&categoryID,
	)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.PartnerID = partnerID.String
	txn.PartnerType = model.PartnerType(partnerType.String)
	txn.PartnerMatchConfidence = int(confidence.Int64)
	txn.PartnerMatchedBy = model.MatchedBy(matchedBy.String)
	txn.NoReceiptCategoryID = categoryID.String
	txn.FileIDs = parseStringList(fileIDs)

	if suggestionsJSON.Valid && suggestionsJSON.String != "" {
		if err := json.Unmarshal([]byte(suggestionsJSON.String), &txn.PartnerSuggestions); err != nil {
			// Log but don't fail on JSON parse error
			slog.Warn("Failed to parse suggestions JSON", "error", err, "transaction_id", txn.ID)
		}
	}

	return txn, nil
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// placeholders returns a comma-separated list of n SQL parameter markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullIfEmpty stores empty strings as NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// marshalStringList encodes a string slice for a JSON TEXT column. Empty
// slices encode as the empty string.
func marshalStringList(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return ""
	}
	return string(b)
}

// parseStringList decodes a JSON TEXT column into a string slice.
func parseStringList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		slog.Warn("Failed to parse JSON list column", "error", err, "json", ns.String)
		return nil
	}
	return out
}

// marshalSuggestions encodes the suggestion list for its JSON TEXT column.
func marshalSuggestions(suggestions []model.Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}
	b, err := json.Marshal(suggestions)
	if err != nil {
		return ""
	}
	return string(b)
}
