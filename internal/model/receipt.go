package model

import (
	"github.com/shopspring/decimal"
)

// Taxable enum constants (tri-state: extraction may not know)
const (
	Taxable    = "TAXABLE"
	NonTaxable = "NON_TAXABLE"
	TaxUnknown = "UNKNOWN"
)

// ReceiptStatus enum constants
const (
	StatusUploaded    = "UPLOADED"
	StatusExtracted   = "EXTRACTED"
	StatusNeedsReview = "NEEDS_REVIEW"
	StatusFinalized   = "FINALIZED"
)

// LineItem is a single purchased item on the receipt.
// LineSubtotal starts as Quantity × UnitPrice but a reviewer edit may
// replace it; the split engine and validator always read LineSubtotal.
type LineItem struct {
	ItemID         string           `json:"item_id"`
	NameRaw        string           `json:"name_raw"`
	NameNormalized string           `json:"name_normalized,omitempty"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	LineSubtotal   decimal.Decimal  `json:"line_subtotal"`
	Taxable        string           `json:"taxable"` // TAXABLE, NON_TAXABLE, UNKNOWN
	TaxAmount      *decimal.Decimal `json:"tax_amount"`
}

// Fee is a receipt-level charge (bag fee, service fee, ...) split
// independently of item assignments. Empty SplitAmong means all people.
type Fee struct {
	FeeID      string           `json:"fee_id"`
	Type       string           `json:"type"` // SERVICE, BAG, DELIVERY, ...
	Amount     decimal.Decimal  `json:"amount"`
	Taxable    string           `json:"taxable"`
	TaxAmount  *decimal.Decimal `json:"tax_amount"`
	SplitAmong []string         `json:"split_among,omitempty"` // person ids, empty = everyone
}

// Discount is a receipt-level credit. Amount is a positive magnitude;
// it is subtracted from totals and shares. A taxable discount carries a
// negative tax impact that reduces total tax owed.
type Discount struct {
	DiscountID  string           `json:"discount_id"`
	Description string           `json:"description,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Taxable     string           `json:"taxable"`
	TaxImpact   *decimal.Decimal `json:"tax_impact"`
	SplitAmong  []string         `json:"split_among,omitempty"`
}

// Receipt is the full extracted-then-reviewed document body. Reported
// totals come from the receipt image and are authoritative for
// reconciliation; calculated totals are always re-derived.
type Receipt struct {
	ReceiptID          string           `json:"receipt_id"`
	Vendor             string           `json:"vendor,omitempty"`
	LineItems          []LineItem       `json:"line_items"`
	Fees               []Fee            `json:"fees"`
	Discounts          []Discount       `json:"discounts"`
	SubtotalItems      decimal.Decimal  `json:"subtotal_items"`
	TotalFees          decimal.Decimal  `json:"total_fees"`
	TotalDiscount      decimal.Decimal  `json:"total_discount"`
	TotalTaxReported   *decimal.Decimal `json:"total_tax_reported"`
	TotalTaxCalculated *decimal.Decimal `json:"total_tax_calculated"`
	GrandTotal         decimal.Decimal  `json:"grand_total"`
	Status             string           `json:"status"`
}
