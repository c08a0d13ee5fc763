// Package registry resolves counterparty names against an external business
// registry. The endpoint only does coarse text search; hits are re-ranked
// locally by edit distance, and the top hit can be turned into a partner
// record. Localizing a shared global partner into a user's own set lives here
// too, next to the other partner-creation path.
package registry

import (
	"context"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/textnorm"
)

// Entry is a single record returned by the business registry.
type Entry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	VATID   string `json:"vatId"`
	Website string `json:"website"`
	City    string `json:"city"`
}

// Match pairs a registry entry with its similarity to the search query.
type Match struct {
	Entry      Entry
	Similarity float64
}

// Client defines the interface for business-registry lookups.
//
// Search returns at most limit hits ordered best first. An unreachable
// registry is an error; an empty result set is not.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Match, error)
}

// similarity maps a query/name pair to [0,1] using normalized Levenshtein
// distance. Both sides are folded first so case, umlauts and spacing do not
// count as edits.
func similarity(query, name string) float64 {
	q := textnorm.Fold(query)
	n := textnorm.Fold(name)
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1
	}
	dist := levenshtein.ComputeDistance(q, n)
	longer := len([]rune(q))
	if l := len([]rune(n)); l > longer {
		longer = l
	}
	return 1 - float64(dist)/float64(longer)
}

// rank scores entries against the query and orders them best first, ties in
// registry order. Entries carrying the caller's own VAT id are dropped so a
// lookup can never import the user's own company record.
func rank(query string, entries []Entry, own *identity.Own, limit int) []Match {
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		if own.IsOwnVATID(e.VATID) {
			continue
		}
		matches = append(matches, Match{Entry: e, Similarity: similarity(query, e.Name)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
