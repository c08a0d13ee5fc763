// Package storage provides the data persistence layer for the konto application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kontoworks/konto/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidPartner     = errors.New("invalid partner")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrInvalidRemoval     = errors.New("invalid manual removal")
	ErrInvalidFile        = errors.New("invalid file")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validatePartner validates a partner.
func validatePartner(partner *model.Partner) error {
	if partner == nil {
		return fmt.Errorf("%w: partner", ErrNilParameter)
	}
	if err := partner.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPartner, err)
	}
	return nil
}

// validateCategory validates a category.
func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if err := category.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	return nil
}

// validatePatterns validates a pattern set before it replaces the stored one.
// An empty set is valid: clearing all patterns is a normal learning outcome.
func validatePatterns(patterns []model.LearnedPattern) error {
	for i := range patterns {
		if err := patterns[i].Validate(); err != nil {
			return fmt.Errorf("%w at index %d: %v", ErrInvalidPattern, i, err)
		}
	}
	return nil
}

// validateRemoval validates a manual removal record.
func validateRemoval(removal model.ManualRemoval) error {
	if removal.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidRemoval)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}

// validateFile validates a stored file.
func validateFile(file *model.File) error {
	if file == nil {
		return fmt.Errorf("%w: file", ErrNilParameter)
	}
	if file.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidFile)
	}
	return nil
}
