// Package locale holds the two display locales of the registry and the
// number and date formatting shared by every generated document.
package locale

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale is a document display locale
type Locale string

const (
	English Locale = "en"
	Lao     Locale = "lo"
)

// Parse accepts "en" or "lo" (any case); empty defaults to Lao.
func Parse(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lo", "lao":
		return Lao, nil
	case "en", "eng", "english":
		return English, nil
	default:
		return "", fmt.Errorf("unsupported locale %q", s)
	}
}

// Tag returns the BCP 47 tag for l.
func (l Locale) Tag() language.Tag {
	if l == English {
		return language.English
	}
	return language.Lao
}

// NeedsUnicodeFont reports whether text in l cannot be set in a core PDF font.
func (l Locale) NeedsUnicodeFont() bool {
	return l != English
}

var laoMonths = [...]string{
	"ມັງກອນ", "ກຸມພາ", "ມີນາ", "ເມສາ", "ພຶດສະພາ", "ມິຖຸນາ",
	"ກໍລະກົດ", "ສິງຫາ", "ກັນຍາ", "ຕຸລາ", "ພະຈິກ", "ທັນວາ",
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "02/01/2006"}

// ParseDate accepts ISO dates and the dd/mm/yyyy form used on paper records.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date string for display. Unparsable input is returned
// unchanged so a typo on a record never blanks a printed field.
func (l Locale) FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return l.FormatTime(t)
}

// FormatTime renders t as a long-form day month year.
func (l Locale) FormatTime(t time.Time) string {
	if l == English {
		return t.Format("2 January 2006")
	}
	return fmt.Sprintf("%d %s %d", t.Day(), laoMonths[t.Month()-1], t.Year())
}

// FormatAmount groups thousands per locale and keeps at most two decimals.
func (l Locale) FormatAmount(v float64) string {
	p := message.NewPrinter(l.Tag())
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatCount formats an integer with thousands grouping.
func (l Locale) FormatCount(n int) string {
	p := message.NewPrinter(l.Tag())
	return p.Sprint(number.Decimal(n))
}

// CurrencySuffix is the suffix printed after kip amounts.
func (l Locale) CurrencySuffix() string {
	if l == English {
		return "LAK"
	}
	return "ກີບ"
}

// FormatCurrency renders an amount followed by the kip suffix.
func (l Locale) FormatCurrency(v float64) string {
	return l.FormatAmount(v) + " " + l.CurrencySuffix()
}
