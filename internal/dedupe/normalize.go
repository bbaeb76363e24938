// Package dedupe detects duplicate business listings. It normalizes names,
// scores token overlap between them and classifies same-address clusters as
// legitimate multi-tenant locations or probable duplicate data.
//
// Everything in this package is a pure function over caller-owned data and is
// safe for concurrent use.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists the legal entity suffixes stripped from the end of a name.
var legalSuffixes = map[string]struct{}{
	"ltd":  {},
	"llc":  {},
	"inc":  {},
	"gmbh": {},
	"bv":   {},
	"sa":   {},
	"srl":  {},
	"lda":  {},
}

// accentTable maps accented Latin letters (already case folded) to their
// unaccented base form.
var accentTable = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o", "ø", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n", "ý", "y", "ÿ", "y",
	"ß", "ss", "æ", "ae", "œ", "oe",
)

// NormalizeName canonicalizes a business name for set-based comparison:
//  1. Unicode case folding
//  2. Combining marks removed, then accented Latin letters mapped to their
//     base letter
//  3. One trailing legal suffix (ltd, llc, inc, gmbh, bv, sa, srl, lda) removed
//  4. Anything that is not a letter, digit or whitespace replaced by a space
//  5. Whitespace collapsed and trimmed
//
// The result may be empty. NormalizeName(NormalizeName(x)) == NormalizeName(x).
func NormalizeName(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToValidUTF8(raw, "")
	s = cases.Fold().String(s)
	s = stripMarks(s)
	s = accentTable.Replace(s)
	s = stripLegalSuffix(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// stripMarks removes combining marks, such as the dot left behind when case
// folding İ. Letters that decompose to a table entry plus a mark (ǿ to ø) are
// then caught by the accent table.
func stripMarks(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stripLegalSuffix drops the final word when it is a legal suffix. Trailing
// punctuation after the suffix is tolerated ("acme, ltd."). A name that is
// only a suffix normalizes to "". The suffix is kept when the word before it is
// also a suffix, so that a second normalization pass never strips again.
func stripLegalSuffix(s string) string {
	words := wordSpans(s)
	if len(words) == 0 {
		return s
	}
	last := words[len(words)-1]
	if !isLegalSuffix(s[last[0]:last[1]]) {
		return s
	}
	if len(words) > 1 {
		prev := words[len(words)-2]
		if isLegalSuffix(s[prev[0]:prev[1]]) {
			return s
		}
	}
	return s[:last[0]]
}

func isLegalSuffix(word string) bool {
	_, ok := legalSuffixes[word]
	return ok
}

// wordSpans returns the byte offsets of each maximal run of letters and digits.
func wordSpans(s string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range s {
		inWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			spans = append(spans, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Tokens splits a normalized name into its set of whitespace-delimited tokens.
func Tokens(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail trims and case folds an email address.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return cases.Fold().String(email)
}
