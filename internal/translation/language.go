package translation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the English display name of a target language.
// Languages are stored as lowercase English names ("spanish"); BCP 47 tags
// such as "es" or "zh-Hant" are accepted too.
func LanguageName(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	if tag, err := language.Parse(lang); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return cases.Title(language.English).String(lang)
}

// NormalizeLanguage returns the stored form of a language: its lowercase
// English name.
func NormalizeLanguage(lang string) string {
	return strings.ToLower(LanguageName(lang))
}
