package match

import (
	"strings"
	"time"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/textnorm"
)

// File matching uses lower thresholds than partner matching: the signals are
// weaker (OCR output, processing delays between invoice and debit).
const (
	FileAutoApplyThreshold = 85
	FileSuggestThreshold   = 50
)

// Amount is the dominant file signal, tiered by relative deviation.
const (
	amountExactScore  = 40
	amountWithin1Pct  = 35
	amountWithin5Pct  = 25
	amountWithin10Pct = 15
)

// Date proximity decays with day distance.
const (
	dateSameDayScore = 20
	dateWithin3Days  = 15
	dateWithin7Days  = 12
	dateWithin14Days = 8
	dateWithin30Days = 4
)

const (
	partnerStrongSim   = 20
	partnerWeakSim     = 10
	accountMatchScore  = 15
	referenceScore     = 10
	referenceDateBoost = 5
)

// FileScore is the weighted-sum result of comparing one file against one
// transaction, with the per-signal breakdown kept for logging.
type FileScore struct {
	Confidence int
	Amount     int
	Date       int
	Partner    int
	Account    int
	Reference  int
}

// AutoApply reports whether the score clears the file auto-apply threshold.
func (s FileScore) AutoApply() bool {
	return s.Confidence >= FileAutoApplyThreshold
}

// Suggest reports whether the score is worth surfacing at all.
func (s FileScore) Suggest() bool {
	return s.Confidence >= FileSuggestThreshold
}

// ScoreFileTransaction compares a stored file against a transaction. The
// same function serves both directions: candidates for a file and files for
// a transaction.
func ScoreFileTransaction(f *model.File, txn *model.Transaction) FileScore {
	var score FileScore

	score.Amount = amountScore(f.AmountMinor, txn.AmountMinor)
	score.Date = dateScore(f.Date, txn.Date)
	score.Partner = partnerScore(f.PartnerName, txn)
	score.Account = accountScore(f.IBAN, txn.PartnerIBAN)
	score.Reference = referenceContainmentScore(f, txn)
	if score.Reference > 0 && score.Date > 0 {
		// A referenced invoice number plus a nearby date is the strongest
		// non-amount evidence a bank debit offers.
		score.Date += referenceDateBoost
	}

	total := score.Amount + score.Date + score.Partner + score.Account + score.Reference
	score.Confidence = model.ClampConfidence(total)
	return score
}

func amountScore(fileMinor *int64, txnMinor int64) int {
	if fileMinor == nil {
		return 0
	}
	fileAbs := abs64(*fileMinor)
	txnAbs := abs64(txnMinor)
	if fileAbs == 0 && txnAbs == 0 {
		return amountExactScore
	}
	if fileAbs == 0 {
		return 0
	}

	diff := abs64(fileAbs - txnAbs)
	switch {
	case diff == 0:
		return amountExactScore
	case diff*100 <= fileAbs:
		return amountWithin1Pct
	case diff*100 <= 5*fileAbs:
		return amountWithin5Pct
	case diff*100 <= 10*fileAbs:
		return amountWithin10Pct
	default:
		return 0
	}
}

func dateScore(fileDate *time.Time, txnDate time.Time) int {
	if fileDate == nil || txnDate.IsZero() {
		return 0
	}
	days := dayDistance(*fileDate, txnDate)
	switch {
	case days == 0:
		return dateSameDayScore
	case days <= 3:
		return dateWithin3Days
	case days <= 7:
		return dateWithin7Days
	case days <= 14:
		return dateWithin14Days
	case days <= 30:
		return dateWithin30Days
	default:
		return 0
	}
}

func dayDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func partnerScore(fileName string, txn *model.Transaction) int {
	if strings.TrimSpace(fileName) == "" {
		return 0
	}
	sim := Similarity(fileName, txn.Partner)
	if s := Similarity(fileName, txn.Name); s > sim {
		sim = s
	}
	switch {
	case sim >= 0.8:
		return partnerStrongSim
	case sim >= 0.6:
		return partnerWeakSim
	default:
		return 0
	}
}

func accountScore(fileIBAN, txnIBAN string) int {
	fi := textnorm.IBAN(fileIBAN)
	ti := textnorm.IBAN(txnIBAN)
	if fi == "" || ti == "" || fi != ti {
		return 0
	}
	return accountMatchScore
}

// referenceContainmentScore looks for document identifiers (invoice numbers
// and the like) inside the transaction's free text. Tokens are split on
// whitespace only, keeping hyphenated identifiers like RG-2024-0815 whole;
// only long digit-bearing tokens count, short ones collide constantly.
func referenceContainmentScore(f *model.File, txn *model.Transaction) int {
	text := textnorm.Fold(txn.Reference + " " + txn.Name)
	if text == "" {
		return 0
	}
	for _, token := range strings.Fields(textnorm.Fold(f.RawText)) {
		token = strings.Trim(token, ".,;:()")
		if len(token) < 6 || !containsDigit(token) {
			continue
		}
		if strings.Contains(text, token) {
			return referenceScore
		}
	}
	return 0
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
