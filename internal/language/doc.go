// Package language normalizes the language option sent with a submission and
// maps detected language codes to display names.
//
// The service accepts ISO 639-1 codes or "auto" for detection. Users may type
// 3-letter codes or English names; these are folded to ISO 639-1 using the
// golang.org/x/text language registry.
package language
