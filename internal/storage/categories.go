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

// categoryColumns is the column list every category query selects, in
// scanCategory order.
const categoryColumns = `id, user_id, name, keywords, is_active, created_at, updated_at`

// SaveCategory inserts or updates a no-receipt category. A missing ID is
// generated. Learned patterns are never written here.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return s.saveCategoryTx(ctx, s.db, category)
}

func (s *SQLiteStorage) saveCategoryTx(ctx context.Context, q queryable, category *model.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, keywords, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			keywords = excluded.keywords,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		category.ID,
		category.UserID,
		category.Name,
		marshalStringList(category.Keywords),
		category.IsActive,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}

	return nil
}

// GetCategory retrieves a category by ID with its learned patterns.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getCategoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCategoryTx(ctx context.Context, q queryable, id string) (*model.Category, error) {
	categories, err := s.queryCategories(ctx, q, `
		SELECT `+categoryColumns+` FROM categories WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, common.ErrNotFound
	}

	patterns, err := s.loadPatterns(ctx, q, ownerKindCategory, `SELECT id FROM categories WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	categories[0].LearnedPatterns = patterns[categories[0].ID]

	return &categories[0], nil
}

// GetCategoriesByUser retrieves a user's active categories, ordered by name.
func (s *SQLiteStorage) GetCategoriesByUser(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getCategoriesByUserTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getCategoriesByUserTx(ctx context.Context, q queryable, userID string) ([]model.Category, error) {
	categories, err := s.queryCategories(ctx, q, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return categories, nil
	}

	ownerQuery := `SELECT id FROM categories WHERE user_id = ? AND is_active = 1`
	patterns, err := s.loadPatterns(ctx, q, ownerKindCategory, ownerQuery, userID)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		categories[i].LearnedPatterns = patterns[categories[i].ID]
	}

	return categories, nil
}

// ReplaceCategoryPatterns swaps the category's learned pattern set for the
// given one. An empty set clears them.
func (s *SQLiteStorage) ReplaceCategoryPatterns(ctx context.Context, categoryID string, patterns []model.LearnedPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
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

	if err := s.replacePatternsTx(ctx, tx, ownerKindCategory, categoryID, patterns); err != nil {
		return err
	}

	return tx.Commit()
}

// queryCategories runs a category query and scans all rows.
func (s *SQLiteStorage) queryCategories(ctx context.Context, q queryable, query string, args ...any) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		category, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

func scanCategory(rows *sql.Rows) (model.Category, error) {
	var c model.Category
	var keywords sql.NullString

	err := rows.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&keywords,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return model.Category{}, fmt.Errorf("failed to scan category: %w", err)
	}

	c.Keywords = parseStringList(keywords)
	return c, nil
}
