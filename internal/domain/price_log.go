package domain

import "time"

type ChangeType string

const (
	ChangeRise     ChangeType = "Rise"
	ChangeDrop     ChangeType = "Drop"
	ChangeNoChange ChangeType = "No change"
)

// PriceLogEntry records one price check. Entries are never updated.
type PriceLogEntry struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	PreviousPrice string     `json:"previous_price"`
	CurrentPrice  string     `json:"current_price"`
	PriceDiff     float64    `json:"price_diff"`
	ChangeType    ChangeType `json:"change_type"`
	DateChecked   time.Time  `json:"date_checked"`
}
