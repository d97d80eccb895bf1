package calculator

import (
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// Calculator carries the configured flat tax rate and reconciliation
// tolerance. All methods are pure: they read the snapshot they are
// given and hold no session state.
type Calculator struct {
	Rate      decimal.Decimal
	Tolerance decimal.Decimal
}

// New builds a Calculator. Rate is the flat tax rate (e.g. 0.13),
// tolerance the maximum accepted drift between computed and reported
// totals (e.g. 0.02).
func New(rate, tolerance decimal.Decimal) Calculator {
	return Calculator{Rate: rate, Tolerance: tolerance}
}

// Tax returns base × Rate when taxable is TAXABLE, otherwise zero.
// A negative base (discount) yields a negative tax impact.
func (c Calculator) Tax(base decimal.Decimal, taxable string) decimal.Decimal {
	if taxable != model.Taxable {
		return decimal.Zero
	}
	return base.Mul(c.Rate)
}

// postTax is amount plus its tax, the figure actually divided among
// people for items, fees and discounts alike.
func (c Calculator) postTax(amount decimal.Decimal, taxable string) decimal.Decimal {
	return amount.Add(c.Tax(amount, taxable))
}
