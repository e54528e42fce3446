package l10n

import (
	"time"

	"golang.org/x/text/language"
)

// Locale is a normalized language code. Only the values produced by
// Normalize are valid; construct locales through it rather than by casting.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleUZ Locale = "uz"

	// DefaultLocale is used when the requested language cannot be resolved.
	DefaultLocale = LocaleRU
)

// FallbackChain is the lookup order for template resolution: the requested
// locale is tried first, then each entry of the chain.
var FallbackChain = []Locale{LocaleRU, LocaleUZ}

var supportedTags = []language.Tag{
	language.Russian, // index 0 == LocaleRU
	language.Uzbek,   // index 1 == LocaleUZ
}

var localeByIndex = []Locale{LocaleRU, LocaleUZ}

var matcher = language.NewMatcher(supportedTags)

// Normalize resolves an arbitrary language identifier ("ru", "ru_RU",
// "uz-Latn-UZ", ...) to one of the supported locales. Unrecognized or empty
// input resolves to DefaultLocale.
func Normalize(lang string) Locale {
	if lang == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLocale
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLocale
	}
	return localeByIndex[idx]
}

// ReferenceTZ is the fixed timezone all absolute dates are rendered in.
// Falls back to a fixed UTC+5 zone when the tzdata lookup fails, which keeps
// formatting deterministic on stripped-down containers.
var ReferenceTZ = loadReferenceTZ()

func loadReferenceTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Tashkent")
	if err != nil {
		return time.FixedZone("UTC+5", 5*60*60)
	}
	return loc
}
