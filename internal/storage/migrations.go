package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS partners (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					type TEXT NOT NULL DEFAULT 'user',
					aliases TEXT,
					account_numbers TEXT,
					vat_id TEXT DEFAULT '',
					website TEXT DEFAULT '',
					email_domains TEXT,
					global_partner_id TEXT DEFAULT '',
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_partners_user ON partners(user_id)`,
				`CREATE INDEX idx_partners_type ON partners(type)`,
				`CREATE INDEX idx_partners_active ON partners(is_active)`,

				`CREATE TABLE IF NOT EXISTS learned_patterns (
					id TEXT PRIMARY KEY,
					partner_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					confidence INTEGER NOT NULL DEFAULT 0,
					source_transaction_ids TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_learned_patterns_partner ON learned_patterns(partner_id)`,

				`CREATE TABLE IF NOT EXISTS manual_removals (
					id TEXT PRIMARY KEY,
					partner_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					partner_text TEXT DEFAULT '',
					name_text TEXT DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX idx_manual_removals_partner_txn ON manual_removals(partner_id, transaction_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					amount_minor INTEGER NOT NULL DEFAULT 0,
					currency TEXT DEFAULT '',
					name TEXT DEFAULT '',
					partner TEXT DEFAULT '',
					reference TEXT DEFAULT '',
					partner_iban TEXT DEFAULT '',
					partner_id TEXT,
					partner_type TEXT,
					partner_match_confidence INTEGER,
					partner_matched_by TEXT,
					suggestions TEXT,
					file_ids TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_partner ON transactions(partner_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_matched_by ON transactions(partner_matched_by)`,

				`CREATE TABLE IF NOT EXISTS files (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					partner_name TEXT DEFAULT '',
					vat_id TEXT DEFAULT '',
					iban TEXT DEFAULT '',
					website TEXT DEFAULT '',
					amount_minor INTEGER,
					date DATETIME,
					currency TEXT DEFAULT '',
					raw_text TEXT DEFAULT '',
					transaction_ids TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_files_user ON files(user_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add no-receipt categories and generalize pattern ownership",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					keywords TEXT,
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_categories_user ON categories(user_id)`,
				// Patterns can now belong to either a partner or a category
				`ALTER TABLE learned_patterns RENAME COLUMN partner_id TO owner_id`,
				`ALTER TABLE learned_patterns ADD COLUMN owner_kind TEXT NOT NULL DEFAULT 'partner'`,
				`DROP INDEX IF EXISTS idx_learned_patterns_partner`,
				`CREATE INDEX idx_learned_patterns_owner ON learned_patterns(owner_id, owner_kind)`,
				`ALTER TABLE transactions ADD COLUMN no_receipt_category_id TEXT`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add learning queue for debounced pattern learning",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS learning_queue (
					user_id TEXT PRIMARY KEY,
					pending_partner_ids TEXT,
					process_after DATETIME,
					status TEXT NOT NULL DEFAULT 'idle',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_learning_queue_status ON learning_queue(status, process_after)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
