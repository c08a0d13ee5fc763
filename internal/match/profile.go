package match

import (
	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/textnorm"
)

// Profile is the scoring view of a candidate. Partners and categories both
// reduce to one; all identifier normalization and own-identity filtering
// happens here so the scorer itself stays pure.
type Profile struct {
	ID       string
	Type     model.PartnerType
	Names    []string
	Domains  []string
	Patterns []model.LearnedPattern
	accounts map[string]bool
	removals map[string]bool
}

// PartnerProfile builds the scoring view of a partner. Identifiers that
// belong to the user themselves are dropped: the user's own IBAN on a partner
// record would otherwise turn every self-transfer into a match.
func PartnerProfile(p *model.Partner, own *identity.Own) *Profile {
	prof := &Profile{
		ID:       p.ID,
		Type:     p.Type,
		Names:    p.NameCandidates(),
		Patterns: p.LearnedPatterns,
		accounts: make(map[string]bool, len(p.AccountNumbers)),
		removals: make(map[string]bool, len(p.ManualRemovals)),
	}

	for _, acc := range p.AccountNumbers {
		n := textnorm.IBAN(acc)
		if n == "" || own.IsOwnIBAN(n) {
			continue
		}
		prof.accounts[n] = true
	}

	prof.addDomain(p.Website, own)
	for _, d := range p.EmailDomains {
		prof.addDomain(d, own)
	}

	for _, r := range p.ManualRemovals {
		prof.removals[r.TransactionID] = true
	}

	return prof
}

// CategoryProfile builds the scoring view of a category. Categories are
// always user-owned and carry no identifiers beyond name, keywords and
// patterns.
func CategoryProfile(c *model.Category) *Profile {
	return &Profile{
		ID:       c.ID,
		Type:     model.PartnerTypeUser,
		Names:    c.NameCandidates(),
		Patterns: c.LearnedPatterns,
	}
}

func (p *Profile) addDomain(raw string, own *identity.Own) {
	d := textnorm.Domain(raw)
	if d == "" || textnorm.IsFreemailDomain(d) || own.IsOwnDomain(d) {
		return
	}
	for _, existing := range p.Domains {
		if existing == d {
			return
		}
	}
	p.Domains = append(p.Domains, d)
}

// Excluded reports whether the user removed this transaction from the
// candidate. Removed pairings are never scored again.
func (p *Profile) Excluded(transactionID string) bool {
	return p.removals[transactionID]
}

// HasAccount reports whether the normalized IBAN belongs to the candidate.
func (p *Profile) HasAccount(normalizedIBAN string) bool {
	return p.accounts[normalizedIBAN]
}
