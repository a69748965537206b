package utils

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slash and dash dates are read day-first, as the ledgers are kept in Spanish.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05.999999Z07",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/06",
}

// ParseDate parses textual dates only. Bare numbers are rejected.
func ParseDate(s string) (time.Time, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, t); err == nil {
			return dateOnly(d), true
		}
	}
	return time.Time{}, false
}

// ParseDateCell also accepts spreadsheet serial numbers, which is how raw
// XLSX and Sheets cells carry dates.
func ParseDateCell(s string) (time.Time, bool) {
	if d, ok := ParseDate(s); ok {
		return d, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	d, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return dateOnly(d), true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

var monthsES = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var monthsEN = [...]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var monthLookup = func() map[string]time.Month {
	m := map[string]time.Month{"setiembre": time.September, "sept": time.September}
	for i := range monthsES {
		month := time.Month(i + 1)
		m[monthsES[i]] = month
		m[monthsEN[i]] = month
		m[monthsES[i][:3]] = month
		m[monthsEN[i][:3]] = month
	}
	return m
}()

// MonthNumber maps a Spanish or English month name (full or three-letter,
// any case or accents) to its month.
func MonthNumber(name string) (time.Month, bool) {
	m, ok := monthLookup[Fold(strings.Trim(strings.TrimSpace(name), "."))]
	return m, ok
}

// MonthName returns the Spanish name: time.March -> "marzo".
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthsES[m-1]
}

// FormatMonth renders a month bucket for people: "marzo 2024".
func FormatMonth(t time.Time) string {
	return MonthName(t.Month()) + " " + strconv.Itoa(t.Year())
}

var folder = cases.Fold()

// Fold normalizes text for comparisons: case-folded, accents removed.
func Fold(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}
