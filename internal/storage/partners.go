package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
)

// Pattern owner kinds. Learned patterns are shared between partners and
// no-receipt categories through the owner_kind discriminator.
const (
	ownerKindPartner  = "partner"
	ownerKindCategory = "category"
)

// partnerColumns is the column list every partner query selects, in
// scanPartner order.
const partnerColumns = `id, user_id, name, type, aliases, account_numbers, vat_id, website,
	email_domains, global_partner_id, is_active, created_at, updated_at`

// SavePartner inserts or updates a partner. A missing ID is generated.
// Learned patterns and manual removals are never written here; they have
// their own operations.
func (s *SQLiteStorage) SavePartner(ctx context.Context, partner *model.Partner) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePartner(partner); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.savePartnerTx(ctx, tx, partner); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) savePartnerTx(ctx context.Context, q queryable, partner *model.Partner) error {
	if partner.ID == "" {
		partner.ID = uuid.NewString()
	}
	now := time.Now()
	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = now
	}
	partner.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO partners (
			id, user_id, name, type, aliases, account_numbers, vat_id, website,
			email_domains, global_partner_id, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			type = excluded.type,
			aliases = excluded.aliases,
			account_numbers = excluded.account_numbers,
			vat_id = excluded.vat_id,
			website = excluded.website,
			email_domains = excluded.email_domains,
			global_partner_id = excluded.global_partner_id,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		partner.ID,
		partner.UserID,
		partner.Name,
		string(partner.Type),
		marshalStringList(partner.Aliases),
		marshalStringList(partner.AccountNumbers),
		partner.VATID,
		partner.Website,
		marshalStringList(partner.EmailDomains),
		partner.GlobalPartnerID,
		partner.IsActive,
		partner.CreatedAt,
		partner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save partner: %w", err)
	}

	return nil
}

// GetPartner retrieves a partner by ID with its patterns and removals.
func (s *SQLiteStorage) GetPartner(ctx context.Context, id string) (*model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPartnerTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPartnerTx(ctx context.Context, q queryable, id string) (*model.Partner, error) {
	partners, err := s.queryPartners(ctx, q, `
		SELECT `+partnerColumns+` FROM partners WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, common.ErrNotFound
	}

	if err := s.loadPartnerEvidence(ctx, q, partners, `SELECT id FROM partners WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &partners[0], nil
}

// GetPartnersByUser retrieves a user's active partners, ordered by name.
func (s *SQLiteStorage) GetPartnersByUser(ctx context.Context, userID string) ([]model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getPartnersByUserTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getPartnersByUserTx(ctx context.Context, q queryable, userID string) ([]model.Partner, error) {
	partners, err := s.queryPartners(ctx, q, `
		SELECT `+partnerColumns+`
		FROM partners
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}

	ownerQuery := `SELECT id FROM partners WHERE user_id = ? AND is_active = 1`
	if err := s.loadPartnerEvidence(ctx, q, partners, ownerQuery, userID); err != nil {
		return nil, err
	}
	return partners, nil
}

// GetGlobalPartners retrieves the active shared partner templates.
func (s *SQLiteStorage) GetGlobalPartners(ctx context.Context) ([]model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getGlobalPartnersTx(ctx, s.db)
}

func (s *SQLiteStorage) getGlobalPartnersTx(ctx context.Context, q queryable) ([]model.Partner, error) {
	partners, err := s.queryPartners(ctx, q, `
		SELECT `+partnerColumns+`
		FROM partners
		WHERE type = 'global' AND is_active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}

	ownerQuery := `SELECT id FROM partners WHERE type = 'global' AND is_active = 1`
	if err := s.loadPartnerEvidence(ctx, q, partners, ownerQuery); err != nil {
		return nil, err
	}
	return partners, nil
}

// DeactivatePartner marks a partner inactive. Partners are never deleted.
func (s *SQLiteStorage) DeactivatePartner(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deactivatePartnerTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deactivatePartnerTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE partners SET is_active = 0, updated_at = ? WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate partner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// ReplacePartnerPatterns swaps the partner's learned pattern set for the given
// one. This is the only write path for patterns; an empty set clears them.
func (s *SQLiteStorage) ReplacePartnerPatterns(ctx context.Context, partnerID string, patterns []model.LearnedPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}
	if err := validatePatterns(patterns); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.replacePatternsTx(ctx, tx, ownerKindPartner, partnerID, patterns); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) replacePatternsTx(ctx context.Context, q queryable, ownerKind, ownerID string, patterns []model.LearnedPattern) error {
	ownerTable := "partners"
	if ownerKind == ownerKindCategory {
		ownerTable = "categories"
	}

	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+ownerTable+` WHERE id = ?)`, ownerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check %s existence: %w", ownerKind, err)
	}
	if !exists {
		return common.ErrNotFound
	}

	if _, err := q.ExecContext(ctx, `
		DELETE FROM learned_patterns WHERE owner_id = ? AND owner_kind = ?
	`, ownerID, ownerKind); err != nil {
		return fmt.Errorf("failed to clear existing patterns: %w", err)
	}

	now := time.Now()
	for i := range patterns {
		p := &patterns[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO learned_patterns (
				id, owner_id, owner_kind, pattern, confidence, source_transaction_ids, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), ownerID, ownerKind, p.Pattern, p.Confidence,
			marshalStringList(p.SourceTransactionIDs), p.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert pattern %q: %w", p.Pattern, err)
		}
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE `+ownerTable+` SET updated_at = ? WHERE id = ?`, now, ownerID,
	); err != nil {
		return fmt.Errorf("failed to touch %s: %w", ownerKind, err)
	}

	return nil
}

// AddManualRemoval records that a transaction does not belong to a partner.
// Re-recording the same removal refreshes its captured texts.
func (s *SQLiteStorage) AddManualRemoval(ctx context.Context, partnerID string, removal model.ManualRemoval) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return err
	}
	if err := validateRemoval(removal); err != nil {
		return err
	}
	return s.addManualRemovalTx(ctx, s.db, partnerID, removal)
}

func (s *SQLiteStorage) addManualRemovalTx(ctx context.Context, q queryable, partnerID string, removal model.ManualRemoval) error {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM partners WHERE id = ?)`, partnerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check partner existence: %w", err)
	}
	if !exists {
		return common.ErrNotFound
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO manual_removals (id, partner_id, transaction_id, partner_text, name_text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(partner_id, transaction_id) DO UPDATE SET
			partner_text = excluded.partner_text,
			name_text = excluded.name_text
	`, uuid.NewString(), partnerID, removal.TransactionID, removal.Partner, removal.Name)
	if err != nil {
		return fmt.Errorf("failed to add manual removal: %w", err)
	}

	return nil
}

// queryPartners runs a partner query and scans all rows.
func (s *SQLiteStorage) queryPartners(ctx context.Context, q queryable, query string, args ...any) ([]model.Partner, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var partners []model.Partner
	for rows.Next() {
		partner, scanErr := scanPartner(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		partners = append(partners, partner)
	}

	return partners, rows.Err()
}

func scanPartner(rows *sql.Rows) (model.Partner, error) {
	var p model.Partner
	var partnerType string
	var aliases, accounts, domains sql.NullString

	err := rows.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&partnerType,
		&aliases,
		&accounts,
		&p.VATID,
		&p.Website,
		&domains,
		&p.GlobalPartnerID,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return model.Partner{}, fmt.Errorf("failed to scan partner: %w", err)
	}

	p.Type = model.PartnerType(partnerType)
	p.Aliases = parseStringList(aliases)
	p.AccountNumbers = parseStringList(accounts)
	p.EmailDomains = parseStringList(domains)

	return p, nil
}

// loadPartnerEvidence attaches learned patterns and manual removals to the
// given partners. ownerQuery selects the same partner IDs the caller fetched.
func (s *SQLiteStorage) loadPartnerEvidence(ctx context.Context, q queryable, partners []model.Partner, ownerQuery string, args ...any) error {
	if len(partners) == 0 {
		return nil
	}

	patterns, err := s.loadPatterns(ctx, q, ownerKindPartner, ownerQuery, args...)
	if err != nil {
		return err
	}
	removals, err := s.loadRemovals(ctx, q, ownerQuery, args...)
	if err != nil {
		return err
	}

	for i := range partners {
		partners[i].LearnedPatterns = patterns[partners[i].ID]
		partners[i].ManualRemovals = removals[partners[i].ID]
	}
	return nil
}

// loadPatterns retrieves learned patterns grouped by owner ID.
func (s *SQLiteStorage) loadPatterns(ctx context.Context, q queryable, ownerKind, ownerQuery string, args ...any) (map[string][]model.LearnedPattern, error) {
	queryArgs := make([]any, 0, len(args)+1)
	queryArgs = append(queryArgs, ownerKind)
	queryArgs = append(queryArgs, args...)

	rows, err := q.QueryContext(ctx, `
		SELECT owner_id, pattern, confidence, source_transaction_ids, created_at
		FROM learned_patterns
		WHERE owner_kind = ? AND owner_id IN (`+ownerQuery+`)
		ORDER BY owner_id, created_at
	`, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learned patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	patterns := make(map[string][]model.LearnedPattern)
	for rows.Next() {
		var ownerID string
		var lp model.LearnedPattern
		var sources sql.NullString

		if err := rows.Scan(&ownerID, &lp.Pattern, &lp.Confidence, &sources, &lp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learned pattern: %w", err)
		}
		lp.SourceTransactionIDs = parseStringList(sources)
		patterns[ownerID] = append(patterns[ownerID], lp)
	}

	return patterns, rows.Err()
}

// loadRemovals retrieves manual removals grouped by partner ID.
func (s *SQLiteStorage) loadRemovals(ctx context.Context, q queryable, ownerQuery string, args ...any) (map[string][]model.ManualRemoval, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT partner_id, transaction_id, partner_text, name_text
		FROM manual_removals
		WHERE partner_id IN (`+ownerQuery+`)
		ORDER BY partner_id, created_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual removals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	removals := make(map[string][]model.ManualRemoval)
	for rows.Next() {
		var partnerID string
		var r model.ManualRemoval

		if err := rows.Scan(&partnerID, &r.TransactionID, &r.Partner, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan manual removal: %w", err)
		}
		removals[partnerID] = append(removals[partnerID], r)
	}

	return removals, rows.Err()
}
