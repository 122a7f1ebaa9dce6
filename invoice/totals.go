package invoice

import "github.com/shopspring/decimal"

const moneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Totals holds the computed invoice sums.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// LineAmount returns quantity x unit price rounded to cents.
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(moneyPlaces)
}

// ComputeTotals sums line amounts and applies the VAT rate (a percentage).
func ComputeTotals(lines []LineItem, vatRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineAmount(line.Quantity, line.UnitPrice))
	}
	subtotal = subtotal.Round(moneyPlaces)
	tax := subtotal.Mul(vatRate).Div(hundred).Round(moneyPlaces)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Recalculate returns a copy of inv with line amounts, positions and totals
// derived from its lines. Stored totals are never trusted.
func Recalculate(inv Invoice) Invoice {
	lines := make([]LineItem, len(inv.Lines))
	for i, line := range inv.Lines {
		line.Position = i + 1
		line.Amount = LineAmount(line.Quantity, line.UnitPrice)
		lines[i] = line
	}
	inv.Lines = lines

	totals := ComputeTotals(lines, inv.VATRate)
	inv.Subtotal = totals.Subtotal
	inv.Tax = totals.Tax
	inv.Total = totals.Total
	return inv
}

// TotalsStale reports whether the stored totals disagree with the lines.
func TotalsStale(inv Invoice) bool {
	totals := ComputeTotals(inv.Lines, inv.VATRate)
	return !totals.Subtotal.Equal(inv.Subtotal) ||
		!totals.Tax.Equal(inv.Tax) ||
		!totals.Total.Equal(inv.Total)
}
