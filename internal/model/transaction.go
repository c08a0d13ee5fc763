package model

import "time"

// MatchedBy records how a transaction's partner assignment came to be.
type MatchedBy string

const (
	// MatchedByManual indicates the user assigned the partner directly.
	MatchedByManual MatchedBy = "manual"
	// MatchedBySuggestion indicates the user accepted a suggested partner.
	MatchedBySuggestion MatchedBy = "suggestion"
	// MatchedByAuto indicates the assignment was derived solely from signals.
	MatchedByAuto MatchedBy = "auto"
	// MatchedByAI indicates the assignment came from the document extraction
	// pipeline and was confirmed there.
	MatchedByAI MatchedBy = "ai"
)

// MatchSource identifies which signal produced a match.
type MatchSource string

const (
	// MatchSourceAccount is an exact bank account number match.
	MatchSourceAccount MatchSource = "account"
	// MatchSourcePattern is a learned wildcard pattern match.
	MatchSourcePattern MatchSource = "pattern"
	// MatchSourceDomain is a website or email domain match.
	MatchSourceDomain MatchSource = "domain"
	// MatchSourceName is a fuzzy name similarity match.
	MatchSourceName MatchSource = "name"
	// MatchSourceReference is a reference text containment match.
	MatchSourceReference MatchSource = "reference"
)

// Transaction represents a single bank movement.
type Transaction struct {
	Date                   time.Time
	ID                     string
	UserID                 string
	Name                   string // Free-text description as reported by the bank
	Partner                string // Counterparty field as reported by the bank
	Reference              string
	PartnerIBAN            string
	Currency               string
	PartnerID              string
	NoReceiptCategoryID    string
	PartnerType            PartnerType
	PartnerMatchedBy       MatchedBy
	PartnerSuggestions     []Suggestion
	FileIDs                []string
	AmountMinor            int64 // Amount in minor currency units, signed
	PartnerMatchConfidence int
}

// Assigned reports whether the transaction has a partner assignment.
func (t *Transaction) Assigned() bool {
	return t.PartnerID != ""
}

// AutoAssigned reports whether the assignment may be revoked by cascade
// re-evaluation. Assignments without a recorded origin predate match tracking
// and count as auto.
func (t *Transaction) AutoAssigned() bool {
	if t.PartnerID == "" {
		return false
	}
	return t.PartnerMatchedBy == MatchedByAuto || t.PartnerMatchedBy == ""
}

// UserConfirmed reports whether the assignment was made or accepted by the
// user. Only these assignments feed pattern learning.
func (t *Transaction) UserConfirmed() bool {
	if t.PartnerID == "" {
		return false
	}
	switch t.PartnerMatchedBy {
	case MatchedByManual, MatchedBySuggestion, MatchedByAI:
		return true
	case MatchedByAuto:
		return false
	default:
		return false
	}
}

// ClearAssignment removes the partner assignment and its match metadata.
func (t *Transaction) ClearAssignment() {
	t.PartnerID = ""
	t.PartnerType = ""
	t.PartnerMatchConfidence = 0
	t.PartnerMatchedBy = ""
}

// Suggestion is one ranked partner candidate for a transaction. Suggestions
// are ephemeral and fully recomputed on every match run.
type Suggestion struct {
	PartnerID   string      `json:"partnerId"`
	PartnerType PartnerType `json:"partnerType"`
	Source      MatchSource `json:"source"`
	Confidence  int         `json:"confidence"`
}
