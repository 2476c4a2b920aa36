package domain

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// LanguageUnknown is reported when the language cannot be detected
const LanguageUnknown = "unknown"

// DetectLanguage returns the ISO 639-1 code of text's language, or "unknown"
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return LanguageUnknown
	}
	info := whatlanggo.Detect(text)
	if info.Script == nil || info.Lang < 0 {
		return LanguageUnknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return LanguageUnknown
	}
	return code
}
