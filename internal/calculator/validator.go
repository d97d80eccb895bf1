package calculator

import (
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// Validate reconciles computed totals against the receipt's reported
// figures, independent of how items were assigned.
//
// calculated_items_subtotal sums every item's current price field, so
// items nobody is assigned to still count; the resulting gap against
// split_total is surfaced, not hidden. The result is advisory during
// review; only finalize treats a failed check as blocking.
func Validate(c Calculator, receipt model.Receipt, shares []model.Share) model.TotalValidation {
	subtotal := decimal.Zero
	itemsTax := decimal.Zero
	for _, it := range receipt.LineItems {
		subtotal = subtotal.Add(it.LineSubtotal)
		itemsTax = itemsTax.Add(c.Tax(it.LineSubtotal, it.Taxable))
	}

	grand := subtotal.Add(itemsTax)
	for _, fee := range receipt.Fees {
		grand = grand.Add(c.postTax(fee.Amount, fee.Taxable))
	}
	for _, disc := range receipt.Discounts {
		grand = grand.Sub(c.postTax(disc.Amount, disc.Taxable))
	}

	splitTotal := decimal.Zero
	for _, s := range shares {
		splitTotal = splitTotal.Add(s.AmountOwed)
	}

	return model.TotalValidation{
		CalculatedItemsSubtotal: subtotal,
		CalculatedItemsTax:      itemsTax,
		CalculatedGrandTotal:    grand,
		ReportedGrandTotal:      receipt.GrandTotal,
		SplitTotal:              splitTotal,
		Difference:              splitTotal.Sub(receipt.GrandTotal),
		IsValid:                 grand.Sub(receipt.GrandTotal).Abs().LessThan(c.Tolerance),
		SplitMatches:            splitTotal.Sub(grand).Abs().LessThan(c.Tolerance),
	}
}
