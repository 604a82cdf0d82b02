package match

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// digraphRewrites maps common digraphs to their phonetic equivalents. Applied
// before vowel removal so "Phillip" and "Filip" reduce to the same skeleton.
var digraphRewrites = []struct {
	from, to string
}{
	{"ph", "f"},
	{"ck", "k"},
	{"sh", "s"},
	{"gh", "g"},
	{"th", "t"},
	{"ch", "k"},
	{"wh", "w"},
}

// PhoneticCode reduces a comparison string to a consonant-skeleton code:
// digraphs rewritten, doubled letters collapsed, vowels removed. The first
// letter is always kept so "Aaron" and "Ron" stay distinct.
func PhoneticCode(s string) string {
	var b strings.Builder

	for _, word := range strings.Fields(s) {
		for _, rw := range digraphRewrites {
			word = strings.ReplaceAll(word, rw.from, rw.to)
		}

		var prev rune
		for i, r := range word {
			if r == prev {
				continue // collapse doubled letters
			}
			if i > 0 && isVowel(r) {
				prev = r
				continue
			}
			b.WriteRune(r)
			prev = r
		}
	}

	return b.String()
}

// PhoneticSimilarity scores two comparison strings by their phonetic codes.
// Identical codes score 100; near-matches score proportionally via edit
// distance on the codes.
func PhoneticSimilarity(a, b string) float64 {
	codeA := PhoneticCode(a)
	codeB := PhoneticCode(b)

	if codeA == codeB {
		return 100
	}
	if codeA == "" || codeB == "" {
		return 0
	}

	distance := levenshtein.ComputeDistance(codeA, codeB)
	maxLen := len(codeA)
	if len(codeB) > maxLen {
		maxLen = len(codeB)
	}
	if distance >= maxLen {
		return 0
	}

	return float64(maxLen-distance) / float64(maxLen) * 100
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
