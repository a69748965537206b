package utils

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DecimalConvention tells ParseAmount which separator marks decimals.
type DecimalConvention string

const (
	DecimalAuto  DecimalConvention = "auto"
	DecimalComma DecimalConvention = "comma"
	DecimalPoint DecimalConvention = "point"
)

func ParseConvention(s string) DecimalConvention {
	switch DecimalConvention(strings.ToLower(strings.TrimSpace(s))) {
	case DecimalComma:
		return DecimalComma
	case DecimalPoint:
		return DecimalPoint
	}
	return DecimalAuto
}

var (
	ErrNotAmount = errors.New("not a monetary amount")

	amountShape  = regexp.MustCompile(`^[-+]?[0-9][0-9.,]*$`)
	currencyCode = regexp.MustCompile(`^(?i)([a-z]{3})?\s*(.*?)\s*([a-z]{3})?$`)
)

// ParseAmount turns ledger text such as "$1.234,50", "USD 1,234.50" or
// "(500)" into an exact decimal. Currency symbols, ISO codes, spaces and
// thousands separators are removed; parentheses mean negative.
func ParseAmount(s string, conv DecimalConvention) (decimal.Decimal, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return decimal.Zero, ErrNotAmount
	}
	neg := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		neg = true
		t = strings.TrimSpace(t[1 : len(t)-1])
	}
	t = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, t)
	if m := currencyCode.FindStringSubmatch(t); m != nil {
		t = m[2]
	}
	if strings.HasPrefix(t, "-") {
		neg = !neg
		t = t[1:]
	} else {
		t = strings.TrimPrefix(t, "+")
	}
	if !amountShape.MatchString(t) {
		return decimal.Zero, ErrNotAmount
	}
	t = normalizeSeparators(t, conv)
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotAmount, s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmountFloat is ParseAmount for aggregation code working in float64.
func ParseAmountFloat(s string, conv DecimalConvention) (float64, bool) {
	d, err := ParseAmount(s, conv)
	if err != nil {
		return math.NaN(), false
	}
	f, _ := d.Float64()
	return f, true
}

func normalizeSeparators(t string, conv DecimalConvention) string {
	switch conv {
	case DecimalComma:
		return strings.ReplaceAll(strings.ReplaceAll(t, ".", ""), ",", ".")
	case DecimalPoint:
		return strings.ReplaceAll(t, ",", "")
	}
	lastDot := strings.LastIndex(t, ".")
	lastComma := strings.LastIndex(t, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return normalizeSeparators(t, DecimalComma)
		}
		return normalizeSeparators(t, DecimalPoint)
	case lastComma >= 0:
		// a single comma followed by other than three digits is a decimal comma
		if strings.Count(t, ",") == 1 && len(t)-lastComma-1 != 3 {
			return strings.Replace(t, ",", ".", 1)
		}
		return strings.ReplaceAll(t, ",", "")
	case lastDot >= 0:
		if strings.Count(t, ".") > 1 {
			return strings.ReplaceAll(t, ".", "")
		}
	}
	return t
}

var printer = message.NewPrinter(language.English)

// FormatNumber renders f with two decimals and thousands grouping: 120000 -> "120,000.00".
func FormatNumber(f float64) string {
	return printer.Sprintf("%.2f", Round2(f))
}

func FormatMoney(f float64) string {
	if f < 0 {
		return "-$" + FormatNumber(-f)
	}
	return "$" + FormatNumber(f)
}

func FormatPercent(f float64) string {
	return printer.Sprintf("%.2f%%", Round2(f))
}

func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
