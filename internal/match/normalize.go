// Package match implements the normalizer and similarity engine used for
// entity resolution. All matching operates on normalized comparison strings;
// display forms are preserved separately so aliases keep their original shape.
package match

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyName indicates the input string was empty or whitespace-only.
// This is rejected before any matching attempt; it is invalid input, not
// "no match".
var ErrEmptyName = errors.New("name is empty")

// corporateSuffixes are common legal suffixes stripped from company names
// before comparison. They are preserved in the display/alias form.
var corporateSuffixes = map[string]bool{
	"inc":          true,
	"llc":          true,
	"corp":         true,
	"ltd":          true,
	"co":           true,
	"incorporated": true,
	"corporation":  true,
	"limited":      true,
	"company":      true,
}

// Normalized holds the two forms of a normalized name.
type Normalized struct {
	// Display is the title-cased form with original suffixes preserved,
	// suitable for canonical names and aliases.
	Display string

	// Comparison is the case-folded, punctuation-free, suffix-stripped
	// form that all scorers operate on.
	Comparison string
}

// Normalize canonicalizes a raw name string. Empty or whitespace-only input
// yields ErrEmptyName.
func Normalize(raw string) (Normalized, error) {
	trimmed := collapseWhitespace(raw)
	if trimmed == "" {
		return Normalized{}, ErrEmptyName
	}

	return Normalized{
		Display:    titleCase(trimmed),
		Comparison: comparisonForm(trimmed),
	}, nil
}

// ComparisonForm returns only the comparison form of a raw string, or an
// empty string for empty input. Used where the caller has already validated
// the input.
func ComparisonForm(raw string) string {
	return comparisonForm(collapseWhitespace(raw))
}

// comparisonForm case-folds, strips punctuation, collapses whitespace, and
// removes trailing corporate suffixes.
func comparisonForm(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/':
			b.WriteRune(' ')
			// Other punctuation (periods, commas, apostrophes) is dropped
			// so "O'Brien, Inc." and "OBrien Inc" compare equal.
		}
	}

	tokens := strings.Fields(b.String())

	// Strip trailing corporate suffixes only; "Co Construction LLC" keeps
	// its leading token.
	for len(tokens) > 1 && corporateSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// IsCompanyName reports whether the raw string carries a corporate legal
// suffix, which the resolver uses to infer vendor vs person kind for
// auto-created identities.
func IsCompanyName(raw string) bool {
	tokens := strings.Fields(strings.ToLower(raw))
	if len(tokens) < 2 {
		return false
	}
	last := strings.Trim(tokens[len(tokens)-1], ".,")
	return corporateSuffixes[last]
}

// collapseWhitespace trims and collapses internal runs of whitespace.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleCase upper-cases the first letter of each token, lower-casing the
// rest, except tokens that are already all upper-case (initialisms like
// "LLC" or "IBM") which are preserved.
func titleCase(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if tok == strings.ToUpper(tok) && len(tok) > 1 {
			continue
		}
		runes := []rune(strings.ToLower(tok))
		runes[0] = unicode.ToUpper(runes[0])
		tokens[i] = string(runes)
	}
	return strings.Join(tokens, " ")
}
