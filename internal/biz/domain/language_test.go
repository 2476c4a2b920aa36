package domain

import "testing"

func TestDetectLanguage(t *testing.T) {
	if got := DetectLanguage(""); got != LanguageUnknown {
		t.Errorf("Expected unknown for empty text, got %q", got)
	}
	if got := DetectLanguage("   "); got != LanguageUnknown {
		t.Errorf("Expected unknown for blank text, got %q", got)
	}
	if got := DetectLanguage("1234 5678"); got != LanguageUnknown {
		t.Errorf("Expected unknown for digits, got %q", got)
	}

	got := DetectLanguage("Could you please send me the final version of the proposal before the meeting tomorrow morning?")
	if got != "en" {
		t.Errorf("Expected 'en', got %q", got)
	}
}
