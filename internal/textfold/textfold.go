// Package textfold compares human-readable page text independently of
// accents, letter case and whitespace.
//
// Booking widgets mix "Miércoles" and "MIERCOLES", non-breaking spaces and
// line breaks inside button labels. Every phrase match in citawatch goes
// through Fold so that a configured phrase matches all of those spellings.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s lower-cased, stripped of combining accents and with every
// run of whitespace collapsed to a single space.
func Fold(s string) string {
	// Transformers carry state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return CollapseSpace(cases.Fold().String(stripped))
}

// Contains reports whether phrase occurs in text after folding both.
// An empty phrase never matches.
func Contains(text, phrase string) bool {
	p := Fold(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(Fold(text), p)
}

// ContainsAny returns the first phrase contained in text, if any.
func ContainsAny(text string, phrases []string) (string, bool) {
	folded := Fold(text)
	for _, phrase := range phrases {
		p := Fold(phrase)
		if p != "" && strings.Contains(folded, p) {
			return phrase, true
		}
	}
	return "", false
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
