package dedupe

import "strings"

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// NameSimilarity scores the token overlap of two raw business names after
// normalization.
func NameSimilarity(a, b string) float64 {
	return Jaccard(Tokens(NormalizeName(a)), Tokens(NormalizeName(b)))
}

// minNationalDigits is the shortest digit string that may match a longer one
// by suffix.
const minNationalDigits = 7

// maxCountryCodeDigits bounds the prefix that PhonesMatch ignores.
const maxCountryCodeDigits = 3

// PhonesMatch compares two digits-only phone numbers. They match when equal,
// or when one is the other with a country calling code in front
// ("351220123456" and "220123456"). A leading international "00" is ignored.
func PhonesMatch(a, b string) bool {
	a = strings.TrimPrefix(a, "00")
	b = strings.TrimPrefix(b, "00")
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < minNationalDigits || len(long)-len(short) > maxCountryCodeDigits {
		return false
	}
	return strings.HasSuffix(long, short)
}
