// Package numfmt formats currency, percentage and quantity values for display
// and parses numbers typed by users back into float64.
package numfmt

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ErrInvalidNumber = errors.New("invalid number")

// Formatter renders numbers with the separators of one locale.
type Formatter struct {
	printer *message.Printer
	symbol  string
	decimal rune
	group   rune
}

// Default is the formatter used by the package level helpers (pt-BR, R$).
var Default = New(language.BrazilianPortuguese, "R$")

// New builds a formatter for the locale. The decimal and group separators are
// taken from the locale itself.
func New(tag language.Tag, currencySymbol string) *Formatter {
	p := message.NewPrinter(tag)
	f := &Formatter{printer: p, symbol: currencySymbol, decimal: '.', group: ','}
	sample := p.Sprint(number.Decimal(1000.5, number.MinFractionDigits(1), number.MaxFractionDigits(1)))
	runes := []rune(sample)
	if len(runes) == 7 {
		f.group = runes[1]
		f.decimal = runes[5]
	}
	return f
}

func (f *Formatter) Decimal() rune { return f.decimal }
func (f *Formatter) Group() rune   { return f.group }

// Number formats v with between minFrac and maxFrac fraction digits.
func (f *Formatter) Number(v float64, minFrac, maxFrac int) string {
	s := f.printer.Sprint(number.Decimal(math.Abs(v), number.MinFractionDigits(minFrac), number.MaxFractionDigits(maxFrac)))
	if v < 0 && strings.ContainsFunc(s, func(r rune) bool { return r >= '1' && r <= '9' }) {
		return "-" + s
	}
	return s
}

// Currency formats v as money with two fraction digits, e.g. "R$ 1.234,56".
func (f *Formatter) Currency(v float64) string {
	v = roundTo(v, 2)
	s := f.symbol + " " + f.Number(math.Abs(v), 2, 2)
	if v < 0 {
		return "-" + s
	}
	return s
}

// Percent formats an already scaled percentage (82.5 → "82,5%").
func (f *Formatter) Percent(v float64) string {
	return f.Number(v, 0, 1) + "%"
}

// Quantity formats a stock quantity with up to three fraction digits and an
// optional unit suffix.
func (f *Formatter) Quantity(v float64, unit string) string {
	s := f.Number(v, 0, 3)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func groupedPattern(group string) *regexp.Regexp {
	return regexp.MustCompile(`^\d{1,3}(` + regexp.QuoteMeta(group) + `\d{3})+$`)
}

// Parse reads a user typed number. It accepts the locale's own separators,
// plain machine notation ("1234.5"), a leading currency symbol, a trailing
// percent sign and surrounding whitespace. Formatting a value and parsing the
// result returns the rounded value.
func (f *Formatter) Parse(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, f.symbol))
	if !negative && strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}

	dec, grp := string(f.decimal), string(f.group)
	lastDec := strings.LastIndex(s, dec)
	lastGrp := strings.LastIndex(s, grp)

	var normalized string
	switch {
	case lastDec >= 0 && lastGrp >= 0:
		if lastGrp > lastDec {
			// swapped convention, e.g. "1,234.56" typed into a pt-BR field
			dec, grp = grp, dec
			lastDec = lastGrp
		}
		intPart := s[:lastDec]
		if !groupedPattern(grp).MatchString(intPart) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
		normalized = strings.ReplaceAll(intPart, grp, "") + "." + s[lastDec+len(dec):]
	case lastDec >= 0:
		if strings.Count(s, dec) > 1 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
		normalized = strings.Replace(s, dec, ".", 1)
	case lastGrp >= 0:
		switch {
		case groupedPattern(grp).MatchString(s):
			normalized = strings.ReplaceAll(s, grp, "")
		case strings.Count(s, grp) == 1:
			normalized = strings.Replace(s, grp, ".", 1)
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
	default:
		normalized = s
	}

	for _, r := range normalized {
		if (r < '0' || r > '9') && r != '.' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func FormatCurrency(v float64) string              { return Default.Currency(v) }
func FormatPercent(v float64) string               { return Default.Percent(v) }
func FormatQuantity(v float64, unit string) string { return Default.Quantity(v, unit) }
func FormatNumber(v float64, minFrac, maxFrac int) string {
	return Default.Number(v, minFrac, maxFrac)
}
func ParseNumber(raw string) (float64, error) { return Default.Parse(raw) }

// RoundCents converts a money value to integer cents.
func RoundCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
