package model

import "sort"

// Suggestions is a ranked list of partner candidates with sorting and
// truncation helpers.
type Suggestions []Suggestion

// Len implements sort.Interface.
func (s Suggestions) Len() int {
	return len(s)
}

// Less implements sort.Interface - higher confidence first, user partners
// before global ones on equal confidence.
func (s Suggestions) Less(i, j int) bool {
	if s[i].Confidence != s[j].Confidence {
		return s[i].Confidence > s[j].Confidence
	}
	if s[i].PartnerType != s[j].PartnerType {
		return s[i].PartnerType == PartnerTypeUser
	}
	// Stable output for equal candidates
	return s[i].PartnerID < s[j].PartnerID
}

// Swap implements sort.Interface.
func (s Suggestions) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Sort orders the suggestions by descending confidence.
func (s Suggestions) Sort() {
	sort.Sort(s)
}

// Dedupe keeps the best suggestion per (partner id, partner type) pair,
// preserving rank order.
func (s Suggestions) Dedupe() Suggestions {
	s.Sort()

	type key struct {
		id string
		pt PartnerType
	}
	seen := make(map[key]bool, len(s))
	out := make(Suggestions, 0, len(s))
	for _, sug := range s {
		k := key{id: sug.PartnerID, pt: sug.PartnerType}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, sug)
	}
	return out
}

// Top returns the highest-ranked suggestion, or nil if empty.
func (s Suggestions) Top() *Suggestion {
	if len(s) == 0 {
		return nil
	}
	s.Sort()
	return &s[0]
}

// TopN returns the N highest-ranked suggestions.
func (s Suggestions) TopN(n int) Suggestions {
	if n <= 0 {
		return Suggestions{}
	}

	s.Sort()

	if n > len(s) {
		n = len(s)
	}

	result := make(Suggestions, n)
	copy(result, s[:n])
	return result
}
