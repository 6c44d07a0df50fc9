package domain

import "github.com/shopspring/decimal"

// Item is a purchasable catalog entry. Price is stored in cents to keep
// arithmetic exact; the gateway speaks decimal strings.
type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// PriceAmount renders the price as the decimal string the gateway expects,
// e.g. 1050 -> "10.50".
func (i Item) PriceAmount() string {
	return decimal.New(i.PriceCents, -2).String()
}
