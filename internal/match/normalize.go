package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, removes combining marks, and recomposes, so
// "causés" and "causes" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics, replaces punctuation with spaces,
// and collapses whitespace. "Que couvre la RC-Pro ?" and "que couvre la rc
// pro" normalize to the same string.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// frenchStopWords are short function words excluded from tokens. Two-letter
// acronyms like "RC" survive because only stop-listed two-letter words are
// dropped.
var frenchStopWords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "du": {}, "des": {}, "un": {},
	"une": {}, "et": {}, "ou": {}, "que": {}, "qui": {}, "dans": {}, "sur": {},
	"par": {}, "pour": {}, "avec": {}, "sans": {}, "sous": {}, "aux": {},
	"au": {}, "en": {}, "l": {}, "d": {}, "ce": {}, "se": {}, "ne": {},
	"te": {}, "me": {}, "je": {}, "tu": {}, "il": {}, "elle": {}, "nous": {},
	"vous": {}, "ils": {}, "elles": {}, "son": {}, "sa": {}, "ses": {},
	"mon": {}, "ma": {}, "ton": {}, "ta": {}, "notre": {}, "votre": {},
	"leur": {}, "leurs": {},
}

// Tokenize splits normalized text into meaningful word tokens: words of three
// or more characters, plus two-character words that are not stop words.
func Tokenize(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(normalized) {
		n := len([]rune(word))
		if n >= 3 {
			tokens[word] = struct{}{}
			continue
		}
		if n == 2 {
			if _, stop := frenchStopWords[word]; !stop {
				tokens[word] = struct{}{}
			}
		}
	}
	return tokens
}

// canonicalizeToken collapses common French inflections to a shared stem:
// declarer/declare/declaration -> declar, resiliation/resilier -> resili.
func canonicalizeToken(tok string) string {
	if strings.HasPrefix(tok, "declar") {
		return "declar"
	}
	if strings.HasPrefix(tok, "resili") {
		return "resili"
	}
	return tok
}

// canonicalizeTokens canonicalizes a token set.
func canonicalizeTokens(tokens map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for t := range tokens {
		out[canonicalizeToken(t)] = struct{}{}
	}
	return out
}

// normalizedTokens is the full query/content pipeline: normalize, tokenize,
// canonicalize.
func normalizedTokens(text string) map[string]struct{} {
	return canonicalizeTokens(Tokenize(Normalize(text)))
}

// timeExpression matches durations like "5 jours" or "48h" in normalized text.
var timeExpression = regexp.MustCompile(`\b\d+\s*(jour|jours|heure|heures|h)\b`)

// hasTimeExpression reports whether text contains a duration.
func hasTimeExpression(text string) bool {
	return timeExpression.MatchString(Normalize(text))
}

// intersectCount returns the size of the intersection of two token sets.
func intersectCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

// intersect returns the intersection of two token sets.
func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for t := range a {
		if _, ok := b[t]; ok {
			out[t] = struct{}{}
		}
	}
	return out
}

// subset reports whether every token of a is in b.
func subset(a, b map[string]struct{}) bool {
	for t := range a {
		if _, ok := b[t]; !ok {
			return false
		}
	}
	return true
}
