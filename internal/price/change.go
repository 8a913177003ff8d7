package price

import (
	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Change is the outcome of comparing two prices. PriceDiff is always
// non-negative; Type carries the direction.
type Change struct {
	PriceDiff   float64
	Type        domain.ChangeType
	Significant bool
}

// DetectChange compares two prices with exact equality. Callers feed it
// values parsed from two-decimal canonical strings, so equal prices
// compare equal.
func DetectChange(previous, current float64) Change {
	switch {
	case current > previous:
		return Change{PriceDiff: diff(current, previous), Type: domain.ChangeRise, Significant: true}
	case previous > current:
		return Change{PriceDiff: diff(previous, current), Type: domain.ChangeDrop, Significant: true}
	default:
		return Change{PriceDiff: 0, Type: domain.ChangeNoChange}
	}
}

func diff(hi, lo float64) float64 {
	return decimal.NewFromFloat(hi).Sub(decimal.NewFromFloat(lo)).InexactFloat64()
}
