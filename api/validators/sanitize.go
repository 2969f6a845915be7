package validators

import "strings"

// SanitizeString trims, collapses inner whitespace runs and caps the result
// at maxLen runes. Patient names carry accents, so the cap never splits a
// multi-byte character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}
