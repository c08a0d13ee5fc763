package match

import (
	"math"
	"strings"

	"github.com/kontoworks/konto/internal/glob"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/textnorm"
)

// Confidence assigned to each signal class. Identifier matches are
// unambiguous; everything else stays below or at the domain level.
const (
	accountConfidence = 100
	domainConfidence  = 90
)

// The fuzzy name signal maps similarity onto a confidence band. The
// dedicated counterparty field is trusted more than the free-text name
// field, which carries booking prose.
const (
	counterpartySimilarityFloor = 0.60
	counterpartyBandHigh        = 90
	nameFieldSimilarityFloor    = 0.70
	nameFieldBandHigh           = 85
	nameBandLow                 = 60
)

// Score computes the best signal for one candidate against one transaction.
// The boolean is false when no signal fires or the candidate is excluded for
// this transaction by a manual removal.
func Score(txn *model.Transaction, p *Profile) (model.Suggestion, bool) {
	if p.Excluded(txn.ID) {
		return model.Suggestion{}, false
	}

	// Exact identifiers short-circuit; no fuzzy signal may override them.
	if iban := textnorm.IBAN(txn.PartnerIBAN); iban != "" && p.HasAccount(iban) {
		return model.Suggestion{
			PartnerID:   p.ID,
			PartnerType: p.Type,
			Confidence:  accountConfidence,
			Source:      model.MatchSourceAccount,
		}, true
	}

	best := model.Suggestion{PartnerID: p.ID, PartnerType: p.Type}

	for _, lp := range p.Patterns {
		if lp.Confidence <= best.Confidence {
			continue
		}
		if glob.MatchFlexible(lp.Pattern, txn.Name, txn.Partner, txn.Reference) {
			best.Confidence = lp.Confidence
			best.Source = model.MatchSourcePattern
		}
	}

	if domainConfidence > best.Confidence && len(p.Domains) > 0 {
		text := textnorm.Fold(txn.Name + " " + txn.Partner + " " + txn.Reference)
		for _, d := range p.Domains {
			if strings.Contains(text, d) {
				best.Confidence = domainConfidence
				best.Source = model.MatchSourceDomain
				break
			}
		}
	}

	if conf := nameConfidence(txn, p); conf > best.Confidence {
		best.Confidence = conf
		best.Source = model.MatchSourceName
	}

	if best.Confidence == 0 {
		return model.Suggestion{}, false
	}
	best.Confidence = model.ClampConfidence(best.Confidence)
	return best, true
}

func nameConfidence(txn *model.Transaction, p *Profile) int {
	field := strings.TrimSpace(txn.Partner)
	floor := counterpartySimilarityFloor
	high := counterpartyBandHigh
	if field == "" {
		field = strings.TrimSpace(txn.Name)
		floor = nameFieldSimilarityFloor
		high = nameFieldBandHigh
	}
	if field == "" {
		return 0
	}

	bestSim := 0.0
	for _, candidate := range p.Names {
		if sim := Similarity(field, candidate); sim > bestSim {
			bestSim = sim
		}
	}
	if bestSim < floor {
		return 0
	}

	scaled := float64(nameBandLow) + (bestSim-floor)/(1.0-floor)*float64(high-nameBandLow)
	return int(math.Round(scaled))
}
