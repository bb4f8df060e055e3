package config

import (
	"fmt"
	"strings"
	"time"
)

// AutoDetectLanguage is the language code that leaves detection to the transcriber.
const AutoDetectLanguage = "default"

// VoiceSampleText is spoken when previewing a voice.
const VoiceSampleText = "This is a short sample to preview the selected voice."

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists every selectable language; index 0 is auto-detect and is
// never a valid translation target.
var Languages = []Language{
	{Code: AutoDetectLanguage, Name: "Default (Auto-detect)"},
	{Code: "en", Name: "English"},
	{Code: "zh", Name: "中文 (Chinese, Mandarin)"},
	{Code: "es", Name: "Español (Spanish)"},
	{Code: "de", Name: "Deutsch (German)"},
	{Code: "fr", Name: "Français (French)"},
	{Code: "ja", Name: "日本語 (Japanese)"},
	{Code: "pt", Name: "Português (Portuguese)"},
	{Code: "ru", Name: "Русский (Russian)"},
	{Code: "ar", Name: "العربية (Arabic)"},
	{Code: "it", Name: "Italiano (Italian)"},
	{Code: "ko", Name: "한국어 (Korean)"},
	{Code: "hi", Name: "हिन्दी (Hindi)"},
	{Code: "nl", Name: "Nederlands (Dutch)"},
	{Code: "tr", Name: "Türkçe (Turkish)"},
	{Code: "pl", Name: "Polski (Polish)"},
	{Code: "id", Name: "Bahasa Indonesia (Indonesian)"},
	{Code: "th", Name: "ภาษาไทย (Thai)"},
	{Code: "sv", Name: "Svenska (Swedish)"},
	{Code: "he", Name: "עברית (Hebrew)"},
	{Code: "cs", Name: "Čeština (Czech)"},
}

// LanguageIndex returns the position of code in Languages, or 0 when unknown.
func LanguageIndex(code string) int {
	code = strings.TrimSpace(code)
	for i, lang := range Languages {
		if strings.EqualFold(lang.Code, code) {
			return i
		}
	}
	return 0
}

// LanguageByCode reports whether code names a known language.
func LanguageByCode(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	for _, lang := range Languages {
		if strings.EqualFold(lang.Code, code) {
			return lang, true
		}
	}
	return Language{}, false
}

type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

// ParseGender accepts "female" or "male" in any case.
func ParseGender(s string) (Gender, bool) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case Female:
		return Female, true
	case Male:
		return Male, true
	}
	return "", false
}

type Voice struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Gender Gender `json:"gender"`
}

var FemaleVoices = []Voice{
	{ID: "nova", Label: "Nova", Gender: Female},
	{ID: "alloy", Label: "Alloy", Gender: Female},
	{ID: "verse", Label: "Verse", Gender: Female},
	{ID: "sol", Label: "Sol", Gender: Female},
}

var MaleVoices = []Voice{
	{ID: "onyx", Label: "Onyx", Gender: Male},
	{ID: "sage", Label: "Sage", Gender: Male},
	{ID: "echo", Label: "Echo", Gender: Male},
	{ID: "ember", Label: "Ember", Gender: Male},
}

func findVoice(id string) (Voice, bool) {
	id = strings.TrimSpace(id)
	for _, list := range [][]Voice{FemaleVoices, MaleVoices} {
		for _, v := range list {
			if strings.EqualFold(v.ID, id) {
				return v, true
			}
		}
	}
	return Voice{}, false
}

// VoiceLabel returns the display label for id, or id itself when unknown.
func VoiceLabel(id string) string {
	if v, ok := findVoice(id); ok {
		return v.Label
	}
	return id
}

// FormatClock renders d as HH:MM:SS, truncating fractions of a second.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
