// Package l10n provides locale-aware formatting helpers for notification
// copy: numbers, currency amounts, dates, relative dates, and plural forms.
//
// All functions are pure and degrade gracefully: malformed input is returned
// as its string representation instead of an error, so a single bad field
// never blocks rendering of an entire notification.
//
// Two locales are supported, Russian ("ru") and Uzbek ("uz"). Anything else
// normalizes to the default locale.
//
// # Usage
//
//	l10n.FormatCurrency(1234567, "UZS", l10n.LocaleRU) // "1 234 567 сум"
//	l10n.FormatRelativeDate(deadline, l10n.LocaleRU)   // "через 3 дня"
//
// EnrichContext derives the *_formatted fields the copy templates expect
// from the raw keys of an event's data bag:
//
//	ctx := l10n.EnrichContext(event.Data, l10n.LocaleRU)
//	// ctx["amount_formatted"], ctx["deadline_formatted"], ...
package l10n
