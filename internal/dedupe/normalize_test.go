package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
	assert.Equal(t, "", NormalizeName("!!! --- ..."))
}

func TestNormalizeName_Lowercase(t *testing.T) {
	assert.Equal(t, "blue ocean diner", NormalizeName("Blue OCEAN Diner"))
}

func TestNormalizeName_CaseAndAccentInvariance(t *testing.T) {
	assert.Equal(t, NormalizeName("CAFE MULLER"), NormalizeName("Café Müller"))
	assert.Equal(t, "cafe muller", NormalizeName("Café Müller"))
}

func TestNormalizeName_AccentTable(t *testing.T) {
	assert.Equal(t, "acai do joao", NormalizeName("Açaí do João"))
	assert.Equal(t, "pastelaria sao goncalo", NormalizeName("Pastelaria São Gonçalo"))
	assert.Equal(t, "el nino espanol", NormalizeName("El Niño Español"))
	assert.Equal(t, "creperie a la foret", NormalizeName("Crêperie à la Forêt"))
	assert.Equal(t, "strasse", NormalizeName("Straße"))
	assert.Equal(t, "ubersee", NormalizeName("ÜBERSEE"))
}

func TestNormalizeName_StripTrailingSuffix(t *testing.T) {
	assert.Equal(t, NormalizeName("Acme"), NormalizeName("Acme Ltd"))
	assert.Equal(t, "acme", NormalizeName("Acme LLC"))
	assert.Equal(t, "acme", NormalizeName("Acme, Inc."))
	assert.Equal(t, "acme", NormalizeName("Acme GmbH"))
	assert.Equal(t, "acme", NormalizeName("Acme BV"))
	assert.Equal(t, "acme", NormalizeName("Acme SA"))
	assert.Equal(t, "acme", NormalizeName("Acme SRL"))
	assert.Equal(t, "padaria central", NormalizeName("Padaria Central, Lda."))
}

func TestNormalizeName_SuffixOnlyWhenTrailing(t *testing.T) {
	assert.Equal(t, "acme ltd services", NormalizeName("Acme Ltd Services"))
	assert.NotEqual(t, NormalizeName("Acme Services"), NormalizeName("Acme Ltd Services"))
}

func TestNormalizeName_SuffixPartOfWord(t *testing.T) {
	// "casa" ends in "sa" but is not the suffix word.
	assert.Equal(t, "nova casa", NormalizeName("Nova Casa"))
	assert.Equal(t, "sincorp", NormalizeName("Sincorp"))
}

func TestNormalizeName_OnlySuffix(t *testing.T) {
	assert.Equal(t, "", NormalizeName("LLC"))
	assert.Equal(t, "", NormalizeName("  Ltd. "))
	assert.Equal(t, "ltd llc", NormalizeName("Ltd LLC"))
}

func TestNormalizeName_DecomposedToTableLetter(t *testing.T) {
	assert.Equal(t, "orsted cafe", NormalizeName("Ǿrsted Café"))
	assert.Equal(t, "aether bar", NormalizeName("Ǽther Bar"))
	assert.Equal(t, "dael inn", NormalizeName("Dǣl Inn"))
	assert.Equal(t, 1.0, NameSimilarity("Ǿrsted", "Orsted"))
}

func TestNormalizeName_AtMostOneSuffix(t *testing.T) {
	assert.Equal(t, "acme ltd llc", NormalizeName("Acme Ltd LLC"))
	assert.Equal(t, "acme gmbh ltd", NormalizeName("Acme GmbH Ltd"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "joe s bar grill", NormalizeName("Joe's Bar & Grill"))
	assert.Equal(t, "a b c", NormalizeName("a-b/c"))
}

func TestNormalizeName_CollapseSpaces(t *testing.T) {
	assert.Equal(t, "pizza roma", NormalizeName("  Pizza \t  Roma \n"))
}

func TestNormalizeName_KeepsDigits(t *testing.T) {
	assert.Equal(t, "7 eleven 24h", NormalizeName("7-Eleven (24h)"))
}

func TestNormalizeName_NonLatinLetters(t *testing.T) {
	assert.Equal(t, "東京 ramen", NormalizeName("東京 Ramen"))
	assert.Equal(t, "istanbul kebap", NormalizeName("İstanbul Kebap"))
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Café Müller",
		"Acme Ltd",
		"Acme Ltd Ltd",
		"Acme Ltd (LLC)",
		"LLC",
		"ltd ltd",
		"Padaria Central, Lda.",
		"İstanbul Kebap",
		"Straße Œuvre Æsir",
		"Joe's Bar & Grill",
		"  -- weird__name -- inc --",
		"x sa sa sa",
		"\xff\xfe broken utf8 gmbh",
		"Ǿrsted Café",
		"Ǽther Bar",
		"Dǣl Inn",
		"000000ǿ",
		"ǿ ltd",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
}

func TestTokens(t *testing.T) {
	toks := Tokens("pizza roma pizza")
	assert.Len(t, toks, 2)
	assert.Contains(t, toks, "pizza")
	assert.Contains(t, toks, "roma")
	assert.Empty(t, Tokens(""))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "351220123456", NormalizePhone("+351 220 123 456"))
	assert.Equal(t, "220123456", NormalizePhone("(220) 123-456"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "info@cafe.pt", NormalizeEmail("  Info@Cafe.PT "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func FuzzNormalizeName_Idempotent(f *testing.F) {
	for _, seed := range []string{"", "Café Müller", "Ǿrsted", "Acme Ltd LLC", "İstanbul", "ltd", "Dǣl Inn"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Fatalf("NormalizeName(%q) = %q, second pass %q", in, once, twice)
		}
	})
}
