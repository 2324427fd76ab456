package model

// Language is an ISO 639-1 language code, e.g. "vi".
type Language string

// Languages with authored content in a typical deployment.
const (
	LanguageVietnamese Language = "vi"
	LanguageEnglish    Language = "en"
	LanguageFrench     Language = "fr"
	LanguageJapanese   Language = "ja"
	LanguageKorean     Language = "ko"
	LanguageChinese    Language = "zh"
)

// DefaultLanguage is the content-resolution fallback when a visitor's
// preferred language has no entry for the requested type.
const DefaultLanguage = LanguageVietnamese
