package textutil

import "strings"

// SanitizeSegment converts value into a single safe path segment. Letters,
// digits, dots, hyphens, and underscores are kept with their case; anything
// else becomes an underscore. Empty results and dot-only names yield
// fallback.
func SanitizeSegment(value, fallback string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if strings.Trim(out, ".") == "" {
		return fallback
	}
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	return strings.ToLower(SanitizeSegment(value, "unknown"))
}
