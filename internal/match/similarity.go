// Package match scores partner and category candidates against transactions
// and documents. Scoring is pure: no store access, no side effects.
package match

import (
	"strings"

	"github.com/kontoworks/konto/internal/textnorm"
)

// Similarity computes a 0..1 score between two names from character trigram
// overlap with a containment boost. Full containment of one name in the other
// outranks the same overlap spread across both.
func Similarity(a, b string) float64 {
	na, nb := textnorm.Fold(a), textnorm.Fold(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sim := trigramJaccard(na, nb)

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	// Containment below 4 runes is noise ("ag", "ab" appear everywhere).
	if len([]rune(shorter)) >= 4 && strings.Contains(longer, shorter) {
		cont := 0.7 + 0.3*float64(len(shorter))/float64(len(longer))
		if cont > sim {
			sim = cont
		}
	}
	return sim
}

func trigramJaccard(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for t := range ta {
		if tb[t] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	out := make(map[string]bool, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = true
	}
	return out
}
