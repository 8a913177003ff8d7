// Package price parses, normalizes and compares currency-formatted prices.
package price

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Symbol is the currency prefix every canonical price carries.
const Symbol = "£"

// amountPattern matches each figure that follows the currency symbol,
// with or without thousands separators.
var amountPattern = regexp.MustCompile(`£\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)

// ParsePrice strips the currency symbol and thousands separators and
// returns the numeric value.
func ParsePrice(display string) (float64, error) {
	d, err := parseDecimal(display)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func parseDecimal(display string) (decimal.Decimal, error) {
	raw := strings.ReplaceAll(display, Symbol, "")
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSpace(raw)

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.Errorf(domain.KindFormat, "price %q is not numeric", display)
	}
	return d, nil
}

// ValidateAndFormat returns the canonical form of a scraped price. When
// the page shows several figures (a struck-through price next to a sale
// price) the highest one is kept. Input without any figure is returned
// trimmed but otherwise unchanged.
func ValidateAndFormat(display string) (string, error) {
	s := strings.TrimSpace(display)
	if !strings.HasPrefix(s, Symbol) {
		return "", domain.Errorf(domain.KindFormat, "price %q must start with %s", display, Symbol)
	}

	matches := amountPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var highest decimal.Decimal
	for i, m := range matches {
		v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			return "", domain.Errorf(domain.KindFormat, "price %q: bad figure %q", display, m[1])
		}
		if i == 0 || v.GreaterThan(highest) {
			highest = v
		}
	}

	return Symbol + " " + highest.StringFixed(2), nil
}

// Canonical validates a display price and parses the result.
func Canonical(display string) (string, float64, error) {
	formatted, err := ValidateAndFormat(display)
	if err != nil {
		return "", 0, err
	}
	v, err := ParsePrice(formatted)
	if err != nil {
		return "", 0, err
	}
	return formatted, v, nil
}

// Format renders a value in canonical display form.
func Format(v float64) string {
	return fmt.Sprintf("%s %s", Symbol, decimal.NewFromFloat(v).StringFixed(2))
}
