package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 10000

var (
	maxTaxPercentage = decimal.NewFromInt(100)
	// maxAmount is the largest value a NUMERIC(10,2) money column holds.
	maxAmount = decimal.RequireFromString("99999999.99")
)

// Pricer turns a cart into a Quote using one catalog read.
type Pricer struct {
	catalog         CatalogLookup
	defaultTax      decimal.Decimal
	defaultShipping decimal.Decimal
}

func NewPricer(catalog CatalogLookup, defaultTax, defaultShipping decimal.Decimal) *Pricer {
	return &Pricer{catalog: catalog, defaultTax: defaultTax, defaultShipping: defaultShipping}
}

// Check returns the field errors that need no catalog read.
func (p *Pricer) Check(lines []domain.CartLine, taxPercentage, shipping *decimal.Decimal) map[string]string {
	fields := map[string]string{}
	if len(lines) == 0 {
		fields["items"] = "The items field is required."
	}
	if taxPercentage != nil && (taxPercentage.IsNegative() || taxPercentage.GreaterThan(maxTaxPercentage)) {
		fields["tax_percentage"] = "The tax_percentage field must be between 0 and 100."
	}
	if shipping != nil {
		switch {
		case shipping.IsNegative():
			fields["shipping_charge"] = "The shipping_charge field must be at least 0."
		case shipping.GreaterThan(maxAmount):
			fields["shipping_charge"] = "The shipping_charge field must not be greater than " + maxAmount.String() + "."
		}
	}
	for i, l := range lines {
		key := fmt.Sprintf("items.%d.quantity", i)
		switch {
		case l.Quantity < 1:
			fields[key] = fmt.Sprintf("The %s field must be at least 1.", key)
		case l.Quantity > MaxQuantity:
			fields[key] = fmt.Sprintf("The %s field must not be greater than %d.", key, MaxQuantity)
		}
	}
	return fields
}

// Quote prices lines. taxPercentage and shipping fall back to the configured
// defaults when nil.
func (p *Pricer) Quote(ctx context.Context, lines []domain.CartLine, taxPercentage, shipping *decimal.Decimal) (domain.Quote, error) {
	fields := p.Check(lines, taxPercentage, shipping)
	if len(fields) > 0 {
		return domain.Quote{}, apperr.Validation(fields)
	}

	tax := p.defaultTax
	if taxPercentage != nil {
		tax = *taxPercentage
	}
	ship := p.defaultShipping
	if shipping != nil {
		ship = *shipping
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}

	items, err := p.catalog.Lookup(ctx, ids)
	if err != nil {
		return domain.Quote{}, err
	}

	priced := make([]domain.PricedLine, 0, len(lines))
	for i, l := range lines {
		item, ok := items[l.ItemID]
		if !ok {
			key := fmt.Sprintf("items.%d.item_id", i)
			fields[key] = fmt.Sprintf("The selected %s is invalid.", key)
			continue
		}
		priced = append(priced, domain.PricedLine{
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: l.Quantity,
		})
	}
	if len(fields) > 0 {
		return domain.Quote{}, apperr.Validation(fields)
	}
	quote := domain.NewQuote(priced, tax, ship)
	if quote.Total.GreaterThan(maxAmount) {
		return domain.Quote{}, apperr.InvalidField("items", "The order total must not be greater than "+maxAmount.String()+".")
	}
	return quote, nil
}
