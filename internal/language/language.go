package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto requests language detection by the service.
const Auto = "auto"

// aliases covers English words and ISO 639-2/B codes that users type in
// place of an ISO 639-1 code.
var aliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"mandarin":   "zh",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"polish":     "pl",
	"turkish":    "tr",
	"czech":      "cs",

	"fre": "fr",
	"ger": "de",
	"chi": "zh",
	"cze": "cs",
	"dut": "nl",
}

var detectAliases = map[string]bool{"": true, Auto: true, "detect": true, "auto-detect": true, "autodetect": true}

// ToISO2 folds a language code or English name to ISO 639-1. Two-letter input
// the registry does not know passes through; anything else unknown yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if iso, ok := aliases[code]; ok {
		return iso
	}
	base, err := language.ParseBase(code)
	if err != nil {
		if len(code) == 2 {
			return code
		}
		return ""
	}
	if iso := base.String(); len(iso) == 2 {
		return iso
	}
	return ""
}

// NormalizeOption canonicalizes a user-supplied language option. Empty input
// and the detection aliases map to Auto.
func NormalizeOption(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if detectAliases[value] {
		return Auto, nil
	}
	if code := ToISO2(value); code != "" {
		return code, nil
	}
	return "", fmt.Errorf("unrecognized language %q (use an ISO 639-1 code or %q)", value, Auto)
}

// DisplayName returns the English name of a language code, "Unknown" for an
// empty or "unknown" code, and the upper-cased code when no name exists.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	switch strings.ToLower(code) {
	case "", "unknown":
		return "Unknown"
	case Auto:
		return "Auto-detect"
	}
	if iso := ToISO2(code); iso != "" {
		if base, err := language.ParseBase(iso); err == nil {
			if name := display.English.Languages().Name(base); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(code)
}
