package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName cleans a room or participant display name.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNames cleans every name, keeping their order. Blank names stay in
// the result as empty strings so positions still match room and user ids.
func NormalizeNames(names []string) []string {
	return SanitizeSlice(names, NormalizeName)
}
