package storage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// cleanText trims user supplied text and composes it to NFC so length limits
// and duplicate checks see one form per character.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// foldKey is cleanText plus Unicode case folding, for case-insensitive keys.
func foldKey(s string) string {
	return cases.Fold().String(cleanText(s))
}
