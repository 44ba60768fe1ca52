package services

import (
	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/models"
)

// DefaultTaxRate is applied when no rate is configured
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Totals are the server-computed financials of an order
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums the line totals, rounds tax to cents and adds shipping
func ComputeTotals(items []models.OrderItem, shipping, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// LineTotal is unit price times quantity
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func (t Totals) apply(o *models.Order) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	o.TotalAmount = t.Total
}
