// Package textnorm folds free-form Portuguese text into a canonical shape so
// fuzzy comparisons see "Pirão" and "pirao" as the same word.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases, removes combining diacritical marks and trims
// surrounding whitespace. It is deterministic and idempotent.
func Normalize(text string) string {
	text = strings.ToLower(text)
	if out, _, err := transform.String(stripMarks, text); err == nil {
		text = out
	}
	return strings.TrimSpace(text)
}

// NormalizeStrict additionally drops punctuation, keeping only letters,
// digits and single spaces. Used on the validation path where "pirão-burger"
// and "pirao burger" must compare equal.
func NormalizeStrict(text string) string {
	text = Normalize(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
