package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// yt-dlp decorates some subtitle codes with track variants ("en-orig",
// "de-DE-x-auto"); these suffixes are dropped before parsing.
var variantSuffixes = []string{"-orig", "-x-auto", "-auto"}

// Canonical returns the BCP 47 form of a subtitle language code, or the
// lowercased input when it does not parse.
func Canonical(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(stripVariant(trimmed))
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return tag.String()
}

// Base returns the primary language subtag ("pt" for "pt-BR").
func Base(code string) string {
	tag, err := language.Parse(stripVariant(strings.TrimSpace(code)))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// DisplayName returns the English name for a language code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	tag, err := language.Parse(stripVariant(trimmed))
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// NormalizeList deduplicates and canonicalizes a list of language codes.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		canonical := Canonical(lang)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		normalized = append(normalized, canonical)
	}
	return normalized
}

func stripVariant(code string) string {
	lower := strings.ToLower(code)
	for _, suffix := range variantSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return code[:len(code)-len(suffix)]
		}
	}
	return code
}
