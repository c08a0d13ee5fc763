package learn

import (
	"strings"

	"github.com/kontoworks/konto/internal/textnorm"
)

// genericVocabulary holds folded banking and invoice boilerplate. A pattern
// whose meaningful tokens all come from this list matches transactions of
// almost every partner, no matter how confident the oracle was about it.
var genericVocabulary = map[string]bool{
	// Payment forms
	"zahlung":       true,
	"bezahlung":     true,
	"gutschrift":    true,
	"lastschrift":   true,
	"ueberweisung":  true,
	"dauerauftrag":  true,
	"einzug":        true,
	"bankeinzug":    true,
	"abbuchung":     true,
	"kartenzahlung": true,
	"kartenumsatz":  true,
	"girocard":      true,
	"kreditkarte":   true,
	"visa":          true,
	"mastercard":    true,
	"maestro":       true,
	"pos":           true,
	"atm":           true,
	"geldautomat":   true,
	"bargeld":       true,
	"auszahlung":    true,
	"einzahlung":    true,

	// Scheme and account vocabulary
	"sepa":            true,
	"elv":             true,
	"iban":            true,
	"bic":             true,
	"blz":             true,
	"konto":           true,
	"mandat":          true,
	"mandatsref":      true,
	"mandatsreferenz": true,
	"glaeubiger":      true,
	"glaeubigerid":    true,

	// Document and reference vocabulary
	"rechnung":         true,
	"rechnungsnr":      true,
	"rechnungsnummer":  true,
	"rechnungsdatum":   true,
	"re":               true,
	"rg":               true,
	"rgnr":             true,
	"kunde":            true,
	"kunden":           true,
	"kundennr":         true,
	"kundennummer":     true,
	"kdnr":             true,
	"vertrag":          true,
	"vertragsnr":       true,
	"vertragsnummer":   true,
	"beleg":            true,
	"belegnr":          true,
	"belegnummer":      true,
	"quittung":         true,
	"verwendungszweck": true,
	"referenz":         true,
	"ref":              true,
	"zweck":            true,
	"betreff":          true,
	"bestellung":       true,
	"bestellnr":        true,
	"bestellnummer":    true,
	"auftrag":          true,
	"auftragsnr":       true,
	"auftragsnummer":   true,

	// Booking vocabulary
	"betrag":          true,
	"gebuehr":         true,
	"gebuehren":       true,
	"entgelt":         true,
	"kontofuehrung":   true,
	"abschluss":       true,
	"saldo":           true,
	"zins":            true,
	"zinsen":          true,
	"buchung":         true,
	"wertstellung":    true,
	"umsatz":          true,
	"abrechnung":      true,
	"erstattung":      true,
	"rueckerstattung": true,
	"rueckzahlung":    true,
	"storno":          true,
	"retoure":         true,
	"beitrag":         true,
	"miete":           true,
	"gehalt":          true,
	"lohn":            true,
	"spende":          true,
	"abo":             true,
	"abonnement":      true,

	// Courtesy phrases on receipts
	"danke":      true,
	"dank":       true,
	"vielen":     true,
	"herzlichen": true,
	"sagt":       true,

	// Calendar words
	"monat":     true,
	"jahr":      true,
	"quartal":   true,
	"januar":    true,
	"februar":   true,
	"maerz":     true,
	"april":     true,
	"mai":       true,
	"juni":      true,
	"juli":      true,
	"august":    true,
	"september": true,
	"oktober":   true,
	"november":  true,
	"dezember":  true,

	// Legal forms
	"gmbh": true,
	"ag":   true,
	"kg":   true,
	"ug":   true,
	"ohg":  true,
	"gbr":  true,
	"ev":   true,
	"co":   true,
	"inc":  true,
	"ltd":  true,
	"se":   true,

	// Currencies
	"eur":  true,
	"euro": true,
	"usd":  true,
	"chf":  true,
	"gbp":  true,

	// English boilerplate
	"invoice":      true,
	"payment":      true,
	"transfer":     true,
	"order":        true,
	"purchase":     true,
	"subscription": true,
	"fee":          true,
	"charge":       true,
	"refund":       true,
	"credit":       true,
	"debit":        true,
	"online":       true,
	"shop":         true,
	"store":        true,
	"service":      true,
	"services":     true,
	"customer":     true,
	"billing":      true,
	"bill":         true,
	"receipt":      true,
	"thank":        true,
	"thanks":       true,
	"you":          true,
}

// isGenericToken reports whether a folded token carries no partner-specific
// information. Single characters never identify anything; digit runs up to
// four characters are dates and counters, while longer runs name a specific
// account, mandate or customer.
func isGenericToken(tok string) bool {
	if genericVocabulary[tok] {
		return true
	}
	if len(tok) == 1 {
		return true
	}
	if isDigits(tok) && len(tok) <= 4 {
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// genericOnly reports whether the pattern is built from generic vocabulary
// alone. Wildcards are stripped before tokenizing; a pattern with no
// meaningful tokens at all also counts as generic.
func genericOnly(pattern string) bool {
	stripped := strings.ReplaceAll(pattern, "*", " ")
	tokens := textnorm.Tokens(stripped)
	if len(tokens) == 0 {
		return true
	}
	for _, tok := range tokens {
		if !isGenericToken(tok) {
			return false
		}
	}
	return true
}
