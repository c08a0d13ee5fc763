// Package glob implements the wildcard pattern language used by learned
// patterns. `*` matches any run of characters, including none; everything
// else matches literally after text normalization. Matches are anchored and
// must consume the whole text.
package glob

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kontoworks/konto/internal/textnorm"
)

// Patterns past this length are rejected outright. Nothing legitimate comes
// close; oversized patterns are oracle noise.
const maxPatternLength = 256

type invalidPattern struct{}

// Compiled patterns are shared process-wide. The same few patterns are tried
// against every transaction of a corpus scan, so the cache is hot for the
// whole run.
var compiled = gocache.New(time.Hour, 10*time.Minute)

func compile(pattern string) (*regexp.Regexp, bool) {
	key := textnorm.Fold(pattern)

	if v, found := compiled.Get(key); found {
		if re, ok := v.(*regexp.Regexp); ok {
			return re, true
		}
		return nil, false
	}

	if key == "" || len([]rune(key)) > maxPatternLength {
		slog.Warn("rejecting unusable pattern", "pattern", pattern, "length", len([]rune(key)))
		compiled.Set(key, invalidPattern{}, gocache.DefaultExpiration)
		return nil, false
	}

	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(key, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		// Matching fails closed; one bad pattern must never abort a batch.
		slog.Warn("pattern failed to compile", "pattern", pattern, "error", err)
		compiled.Set(key, invalidPattern{}, gocache.DefaultExpiration)
		return nil, false
	}

	compiled.Set(key, re, gocache.DefaultExpiration)
	return re, true
}

// Valid reports whether a pattern compiles. Used to reject malformed
// candidates before persistence.
func Valid(pattern string) bool {
	_, ok := compile(pattern)
	return ok
}

// Match reports whether the pattern matches the text. Malformed patterns
// never match.
func Match(pattern, text string) bool {
	re, ok := compile(pattern)
	if !ok {
		return false
	}
	return re.MatchString(textnorm.Fold(text))
}

// MatchFlexible tries the pattern against each field individually, both
// two-field concatenations, and the three-field concatenation in both
// directions. Upstream sources disagree about field semantics; what one bank
// export calls a name another delivers as a reference.
func MatchFlexible(pattern, name, partner, reference string) bool {
	re, ok := compile(pattern)
	if !ok {
		return false
	}

	for _, candidate := range fieldCandidates(name, partner, reference) {
		if re.MatchString(textnorm.Fold(candidate)) {
			return true
		}
	}
	return false
}

func fieldCandidates(name, partner, reference string) []string {
	out := make([]string, 0, 6)
	for _, f := range []string{name, partner, reference} {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	if name != "" && partner != "" {
		out = append(out, name+" "+partner, partner+" "+name)
	}
	if name != "" && partner != "" && reference != "" {
		out = append(out, name+" "+partner+" "+reference, reference+" "+partner+" "+name)
	}
	return out
}
