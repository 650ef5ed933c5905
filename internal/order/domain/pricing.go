package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type CartLine struct {
	ItemID   int64
	Quantity int
}

// PricedLine is a cart line with the catalog name and price captured at
// checkout time.
type PricedLine struct {
	ItemID   int64           `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Quote struct {
	Lines          []PricedLine    `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCharge decimal.Decimal `json:"shipping_charge"`
	Total          decimal.Decimal `json:"total"`
}

// NewQuote prices lines. Tax and shipping are rounded half away from zero
// to cents and total is the sum of the stored components, so
// total == subtotal + tax + shipping holds on the persisted values.
func NewQuote(lines []PricedLine, taxPercentage, shipping decimal.Decimal) Quote {
	subtotal := decimal.Zero
	for i := range lines {
		lines[i].Subtotal = lines[i].Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		subtotal = subtotal.Add(lines[i].Subtotal)
	}
	tax := subtotal.Mul(taxPercentage).Div(hundred).Round(2)
	shipping = shipping.Round(2)
	return Quote{
		Lines:          lines,
		Subtotal:       subtotal,
		TaxPercentage:  taxPercentage,
		Tax:            tax,
		ShippingCharge: shipping,
		Total:          subtotal.Add(tax).Add(shipping),
	}
}
