package model

import (
	"github.com/shopspring/decimal"
)

// SplitRuleType enum constants
const (
	RuleEqual       = "EQUAL"
	RuleFixedAmount = "FIXED_AMOUNT"
)

// Person is a split participant. People exist only during the split
// stage; removing one purges their id from every assignment set.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SplitRule declares how one item's cost divides among its assigned
// people. EQUAL divides the post-tax total evenly; FIXED_AMOUNT pays
// each person the amount in Amounts (people missing from Amounts get a
// computed default, see calculator.BuildRules).
type SplitRule struct {
	ItemID  string                     `json:"item_id"`
	Type    string                     `json:"split_type"` // EQUAL, FIXED_AMOUNT
	People  []string                   `json:"people"`
	Amounts map[string]decimal.Decimal `json:"amounts,omitempty"`
}

// FeeShare is one person's contribution to a single fee or discount.
type FeeShare struct {
	FeeID  string          `json:"fee_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Share is one person's computed breakdown.
// AmountOwed = ItemTotal + ItemTax + Σ fees − DiscountCredit; it may be
// negative when discounts exceed charges and is never clamped.
type Share struct {
	PersonID       string          `json:"person_id"`
	DisplayName    string          `json:"display_name"`
	ItemTotal      decimal.Decimal `json:"item_total"`
	ItemTax        decimal.Decimal `json:"item_tax"`
	Fees           []FeeShare      `json:"fees,omitempty"`
	DiscountCredit decimal.Decimal `json:"discount_credit"`
	AmountOwed     decimal.Decimal `json:"amount_owed"`
}

// TotalValidation reconciles engine output against the receipt's own
// reported figures. Advisory during review; SplitMatches gates finalize.
type TotalValidation struct {
	CalculatedItemsSubtotal decimal.Decimal `json:"calculated_items_subtotal"`
	CalculatedItemsTax      decimal.Decimal `json:"calculated_items_tax"`
	CalculatedGrandTotal    decimal.Decimal `json:"calculated_grand_total"`
	ReportedGrandTotal      decimal.Decimal `json:"reported_grand_total"`
	SplitTotal              decimal.Decimal `json:"split_total"`
	// Difference is signed: split_total − reported grand total.
	// Positive means over-allocation.
	Difference   decimal.Decimal `json:"difference"`
	IsValid      bool            `json:"is_valid"`
	SplitMatches bool            `json:"split_matches_calculated"`
}

// SplitRequest is the people + rules snapshot a calculation ran against.
// The finalized copy is persisted verbatim so a re-opened receipt can
// rehydrate the split view without restarting the workflow.
type SplitRequest struct {
	People []Person    `json:"people"`
	Rules  []SplitRule `json:"item_split_rules"`
}

// SplitResult is the immutable snapshot stored at finalize.
type SplitResult struct {
	SplitID    string          `json:"split_id"`
	Shares     []Share         `json:"shares"`
	Validation TotalValidation `json:"total_validation"`
	Request    SplitRequest    `json:"split_request"`
	Errors     []string        `json:"errors,omitempty"`
}
