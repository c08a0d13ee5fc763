// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// PartnerType indicates the ownership scope of a partner.
type PartnerType string

const (
	// PartnerTypeUser represents a user-private partner.
	PartnerTypeUser PartnerType = "user"
	// PartnerTypeGlobal represents a shared partner template visible to all users.
	PartnerTypeGlobal PartnerType = "global"
)

// Partner represents a business counterparty that transactions and documents
// are reconciled against.
type Partner struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              string
	UserID          string
	Name            string
	VATID           string
	Website         string
	GlobalPartnerID string
	Type            PartnerType
	Aliases         []string
	AccountNumbers  []string
	EmailDomains    []string
	LearnedPatterns []LearnedPattern
	ManualRemovals  []ManualRemoval
	IsActive        bool
}

// Validate ensures the partner has the minimum required data.
func (p *Partner) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("partner name is required")
	}
	if p.Type != PartnerTypeUser && p.Type != PartnerTypeGlobal {
		return fmt.Errorf("invalid partner type: %q", p.Type)
	}
	if p.Type == PartnerTypeUser && p.UserID == "" {
		return fmt.Errorf("user partners require a user id")
	}
	return nil
}

// NameCandidates returns the partner's name followed by all aliases, for
// similarity scoring.
func (p *Partner) NameCandidates() []string {
	out := make([]string, 0, len(p.Aliases)+1)
	if p.Name != "" {
		out = append(out, p.Name)
	}
	out = append(out, p.Aliases...)
	return out
}

// HasRemovalFor reports whether the user explicitly removed the given
// transaction from this partner.
func (p *Partner) HasRemovalFor(transactionID string) bool {
	for _, r := range p.ManualRemovals {
		if r.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// IsCounterpartOf reports whether two partner records describe the same
// underlying entity across the user/global boundary. A localized copy keeps
// the id of the global template it was created from.
func (p *Partner) IsCounterpartOf(other *Partner) bool {
	if other == nil {
		return false
	}
	if p.GlobalPartnerID != "" && p.GlobalPartnerID == other.ID {
		return true
	}
	if other.GlobalPartnerID != "" && other.GlobalPartnerID == p.ID {
		return true
	}
	if p.GlobalPartnerID != "" && p.GlobalPartnerID == other.GlobalPartnerID {
		return true
	}
	return false
}

// LearnedPattern is a wildcard text rule derived from confirmed assignments.
type LearnedPattern struct {
	CreatedAt            time.Time
	Pattern              string
	SourceTransactionIDs []string
	Confidence           int
}

// Validate ensures the pattern is persistable.
func (lp *LearnedPattern) Validate() error {
	if lp.Pattern == "" {
		return fmt.Errorf("pattern text is required")
	}
	if lp.Confidence < 0 || lp.Confidence > 100 {
		return fmt.Errorf("pattern confidence must be between 0 and 100, got %d", lp.Confidence)
	}
	return nil
}

// ClampConfidence bounds a confidence value to [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// ManualRemoval records a user's statement that a transaction does not belong
// to a partner. The partner and name texts are captured at removal time so the
// evidence survives later edits to the transaction.
type ManualRemoval struct {
	TransactionID string
	Partner       string
	Name          string
}
