// Package identity answers one question: does an identifier belong to the
// product user themselves rather than to a counterparty. Transfers between a
// user's own accounts and documents carrying the user's own VAT id would
// otherwise match like any partner.
package identity

import "github.com/kontoworks/konto/internal/textnorm"

// Own holds the user's own identifiers in normalized form. A nil *Own
// answers false to everything.
type Own struct {
	vatID   string
	ibans   map[string]bool
	domains map[string]bool
}

// New builds the identity set from configuration values.
func New(vatID string, ibans, emailDomains []string) *Own {
	o := &Own{
		vatID:   textnorm.VATID(vatID),
		ibans:   make(map[string]bool, len(ibans)),
		domains: make(map[string]bool, len(emailDomains)),
	}
	for _, iban := range ibans {
		if n := textnorm.IBAN(iban); n != "" {
			o.ibans[n] = true
		}
	}
	for _, d := range emailDomains {
		if n := textnorm.Domain(d); n != "" {
			o.domains[n] = true
		}
	}
	return o
}

// IsOwnVATID reports whether the VAT id is the user's own.
func (o *Own) IsOwnVATID(vatID string) bool {
	if o == nil || o.vatID == "" {
		return false
	}
	return textnorm.VATID(vatID) == o.vatID
}

// IsOwnIBAN reports whether the account number is one of the user's own.
func (o *Own) IsOwnIBAN(iban string) bool {
	if o == nil {
		return false
	}
	return o.ibans[textnorm.IBAN(iban)]
}

// IsOwnDomain reports whether the domain is one of the user's own.
func (o *Own) IsOwnDomain(domain string) bool {
	if o == nil {
		return false
	}
	return o.domains[textnorm.Domain(domain)]
}
