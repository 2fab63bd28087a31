package registration

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel composes the label to NFC, turns control characters into spaces
// and trims surrounding whitespace, e.g. "  Jiří\n" -> "Jiří".
func NormalizeLabel(s string) string {
	t := transform.Chain(norm.NFC, runes.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.TrimSpace(result)
}
