package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountMinor is a monetary amount in minor currency units. At the extraction
// boundary it accepts either a JSON number or a string, since OCR output mixes
// both and uses either comma or dot decimals.
type AmountMinor int64

// UnmarshalJSON parses a number or string amount into minor units.
func (a *AmountMinor) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	var d decimal.Decimal
	var err error
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err = json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		d, err = parseAmountText(s)
	} else {
		d, err = decimal.NewFromString(raw)
	}
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", raw, err)
	}
	*a = AmountMinor(d.Shift(2).Round(0).IntPart())
	return nil
}

// parseAmountText normalizes a textual amount. Both German (1.234,56) and
// English (1,234.56) separator conventions occur in scanned documents.
func parseAmountText(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '-' || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", s)
	}

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// A single comma followed by anything but a thousands group is a
		// decimal separator.
		digitsAfter := len(cleaned) - lastComma - 1
		if strings.Count(cleaned, ",") == 1 && digitsAfter != 3 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	return decimal.NewFromString(cleaned)
}

// Date is a calendar date from a scanned document. The extraction pipeline
// emits several formats depending on the document's locale.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02/01/2006",
}

// UnmarshalJSON parses any of the supported date layouts.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized date format: %q", s)
}

// MarshalJSON emits the canonical layout.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// FileInfo is the structured record the extraction pipeline delivers for one
// scanned document. Every optional field is tri-state; use Get to treat null
// and absent uniformly as unassigned.
type FileInfo struct {
	Amount           Opt[AmountMinor] `json:"amount"`
	Date             Opt[Date]        `json:"date"`
	CounterpartyName Opt[string]      `json:"counterpartyName"`
	VATID            Opt[string]      `json:"vatId"`
	IBAN             Opt[string]      `json:"iban"`
	Website          Opt[string]      `json:"website"`
	RawText          string           `json:"rawText"`
}

// ToFile normalizes the tri-state extraction record into a stored file owned
// by the given user.
func (fi *FileInfo) ToFile(userID string) *File {
	f := &File{
		UserID:  userID,
		RawText: fi.RawText,
	}
	if v, ok := fi.Amount.Get(); ok {
		minor := int64(v)
		f.AmountMinor = &minor
	}
	if v, ok := fi.Date.Get(); ok {
		t := v.Time
		f.Date = &t
	}
	f.PartnerName = fi.CounterpartyName.OrZero()
	f.VATID = fi.VATID.OrZero()
	f.IBAN = fi.IBAN.OrZero()
	f.Website = fi.Website.OrZero()
	return f
}

// File is a stored document with its extracted fields.
type File struct {
	CreatedAt      time.Time
	Date           *time.Time
	AmountMinor    *int64
	ID             string
	UserID         string
	PartnerName    string
	VATID          string
	IBAN           string
	Website        string
	Currency       string
	RawText        string
	TransactionIDs []string
}
