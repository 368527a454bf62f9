package services

import "strings"

var (
	langKZ = []string{"kz", "kaz", "kazakh", "қаз", "қазақша", "каз", "казахский", "қазақ тілі", "kazakh language"}
	langRU = []string{"ru", "rus", "russian", "рус", "русский", "russian language"}
	langEN = []string{"en", "eng", "english", "анг", "английский", "english language"}

	// Placeholder values that mean "unknown".
	langUnknown = []string{"общ", "общий", "-", "—", "н/д", "none", "unknown", "unk"}
)

func inSet(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// NormalizeLanguage maps a free-form language cell to ru/kz/en. Unknown
// placeholders map to "", anything else is returned as-is.
func NormalizeLanguage(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "":
		return ""
	case inSet(v, langRU):
		return "ru"
	case inSet(v, langKZ):
		return "kz"
	case inSet(v, langEN):
		return "en"
	case inSet(v, langUnknown):
		return ""
	default:
		return strings.TrimSpace(raw)
	}
}

// LanguageVariants exposes the raw variant lists for SQL-side
// normalization (lower(trim(language)) IN (...)).
func LanguageVariants() map[string][]string {
	return map[string][]string{
		"kz": langKZ,
		"ru": langRU,
		"en": langEN,
	}
}
