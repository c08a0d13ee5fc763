// Package textnorm canonicalizes free text before any matching. Every matcher
// compares folded text only; raw bank and document strings never reach a
// comparison directly.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Umlauts are transliterated before generic accent stripping so that "ä"
// becomes "ae" rather than "a". German bank exports use both spellings
// interchangeably.
var umlauts = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold canonicalizes free text: lower case, umlaut transliteration, accent
// stripping, whitespace collapse.
func Fold(s string) string {
	s = strings.ToLower(s)
	s = umlauts.Replace(s)
	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(s), " ")
}

// Domain reduces a website URL or bare host to its normalized host name.
func Domain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#:"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, ".")
}

// EmailDomain extracts the normalized domain of an email address. Returns ""
// when the input is not an address.
func EmailDomain(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return Domain(addr[at+1:])
}

// IBAN normalizes an account number: whitespace removed, upper case.
func IBAN(s string) string {
	return strings.ToUpper(removeRunes(s, " \t."))
}

// VATID normalizes a VAT identifier: whitespace, dots and hyphens removed,
// upper case.
func VATID(s string) string {
	return strings.ToUpper(removeRunes(s, " \t.-"))
}

func removeRunes(s, cutset string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(cutset, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens folds the text and splits it into alphanumeric runs.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// freemailDomains are consumer mail providers. A partner whose contact
// address sits on one of these carries no domain signal, since the domain
// identifies the provider and not the business.
var freemailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"gmx.de":         true,
	"gmx.net":        true,
	"gmx.at":         true,
	"web.de":         true,
	"yahoo.com":      true,
	"yahoo.de":       true,
	"hotmail.com":    true,
	"hotmail.de":     true,
	"outlook.com":    true,
	"outlook.de":     true,
	"icloud.com":     true,
	"aol.com":        true,
	"t-online.de":    true,
	"posteo.de":      true,
	"mail.de":        true,
	"freenet.de":     true,
	"live.com":       true,
	"live.de":        true,
	"me.com":         true,
	"proton.me":      true,
	"protonmail.com": true,
}

// IsFreemailDomain reports whether the normalized domain belongs to a
// consumer mail provider.
func IsFreemailDomain(domain string) bool {
	return freemailDomains[Domain(domain)]
}
