package validators

import "strings"

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// NormalizeEmail trims and lower-cases an address so counters and records key the same way.
func NormalizeEmail(input string) string {
	return strings.ToLower(SanitizeString(input, 254))
}
