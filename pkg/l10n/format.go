package l10n

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const nbsp = "\u00a0"

var decimalSeparator = map[Locale]string{
	LocaleRU: ",",
	LocaleUZ: ".",
}

var currencyLabels = map[Locale]map[string]string{
	LocaleRU: {"UZS": "сум"},
	LocaleUZ: {"UZS": "so'm"},
}

// toDecimal converts arbitrary input to a decimal value. The second return
// value reports whether the conversion succeeded.
func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	default:
		d, err := decimal.NewFromString(fmt.Sprint(value))
		return d, err == nil
	}
}

// FormatNumber renders a numeric value with locale separators: the integer
// part is grouped in chunks of three with a non-breaking space, the fraction
// part (when fractionDigits > 0) is attached with the locale decimal
// separator. Non-numeric input is returned as fmt.Sprint(value).
func FormatNumber(value any, locale Locale, fractionDigits int) string {
	d, ok := toDecimal(value)
	if !ok {
		return fmt.Sprint(value)
	}
	if fractionDigits < 0 {
		fractionDigits = 0
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(int32(fractionDigits))
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	formatted := strings.Join(groups, nbsp)

	if fractionDigits > 0 {
		sep := decimalSeparator[locale]
		if sep == "" {
			sep = "."
		}
		formatted += sep + fracPart
	}
	return sign + formatted
}

// FormatCurrency renders a monetary amount with the currency's fraction
// digits (zero for UZS, two otherwise) and a locale unit label. Currencies
// without a label fall back to the ISO code.
func FormatCurrency(amount any, currency string, locale Locale) string {
	digits := 2
	if currency == "UZS" {
		digits = 0
	}
	number := FormatNumber(amount, locale, digits)
	label := currencyLabels[locale][currency]
	if label == "" {
		label = currency
	}
	return strings.TrimSpace(number + " " + label)
}

// datetimeLayouts are tried in order when parsing string input.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime converts string or time.Time input into a time value. The second
// return value reports success; failed parses keep the raw input untouched.
func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// FormatDateTime renders a timestamp in the reference timezone using the
// "02.01.2006 15:04" pattern. Unparsable input is returned as a string.
func FormatDateTime(value any, locale Locale) string {
	return formatTime(value, "02.01.2006 15:04")
}

// FormatDate renders only the date portion, "02.01.2006".
func FormatDate(value any, locale Locale) string {
	return formatTime(value, "02.01.2006")
}

func formatTime(value any, layout string) string {
	if value == nil {
		return ""
	}
	t, ok := parseTime(value)
	if !ok {
		return fmt.Sprint(value)
	}
	return t.In(ReferenceTZ).Format(layout)
}

// RelativeThresholdDays bounds how far FormatRelativeDate produces relative
// phrases; beyond it an absolute date is used instead.
const RelativeThresholdDays = 7

// FormatRelativeDate renders a date relative to today in the reference
// timezone: a today/yesterday/tomorrow token for offsets of 0/±1 day, a
// pluralized "in N days" / "N days ago" phrase within the threshold, and an
// absolute date beyond it.
func FormatRelativeDate(value any, locale Locale) string {
	if value == nil {
		return ""
	}
	t, ok := parseTime(value)
	if !ok {
		return fmt.Sprint(value)
	}
	return relativeDate(t, time.Now(), locale, RelativeThresholdDays)
}

func relativeDate(t, now time.Time, locale Locale, thresholdDays int) string {
	target := t.In(ReferenceTZ)
	local := now.In(ReferenceTZ)
	targetDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, ReferenceTZ)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, ReferenceTZ)
	delta := int(targetDay.Sub(today).Hours() / 24)

	switch delta {
	case 0:
		if locale == LocaleUZ {
			return "bugun"
		}
		return "сегодня"
	case -1:
		if locale == LocaleUZ {
			return "kecha"
		}
		return "вчера"
	case 1:
		if locale == LocaleUZ {
			return "ertaga"
		}
		return "завтра"
	}

	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs > thresholdDays {
		return FormatDate(t, locale)
	}

	if locale == LocaleUZ {
		if delta > 0 {
			return fmt.Sprintf("yana %d kun ichida", abs)
		}
		return fmt.Sprintf("%d kun oldin", abs)
	}

	unit := FormatPlural(abs, locale, map[PluralForm]string{
		FormOne:  "день",
		FormFew:  "дня",
		FormMany: "дней",
	})
	if delta > 0 {
		return fmt.Sprintf("через %d %s", abs, unit)
	}
	return fmt.Sprintf("%d %s назад", abs, unit)
}

// PluralForm is a CLDR-style plural category.
type PluralForm string

const (
	FormOne   PluralForm = "one"
	FormFew   PluralForm = "few"
	FormMany  PluralForm = "many"
	FormOther PluralForm = "other"
)

// FormatPlural selects the plural form of a unit word for the given count.
// Russian follows the Slavic one/few/many rule; Uzbek distinguishes only
// singular and plural. Missing forms fall back other -> one -> "".
func FormatPlural(count int, locale Locale, forms map[PluralForm]string) string {
	var category PluralForm
	if locale == LocaleRU {
		mod10 := count % 10
		mod100 := count % 100
		switch {
		case mod10 == 1 && mod100 != 11:
			category = FormOne
		case mod10 >= 2 && mod10 <= 4 && !(mod100 >= 12 && mod100 <= 14):
			category = FormFew
		case mod10 == 0 || (mod10 >= 5 && mod10 <= 9) || (mod100 >= 11 && mod100 <= 14):
			category = FormMany
		default:
			category = FormOther
		}
	} else {
		if count == 1 {
			category = FormOne
		} else {
			category = FormOther
		}
	}

	if form, ok := forms[category]; ok && form != "" {
		return form
	}
	if form, ok := forms[FormOther]; ok && form != "" {
		return form
	}
	if form, ok := forms[FormOne]; ok && form != "" {
		return form
	}
	return ""
}
