package calculator

import (
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// Selection is one item's raw assignment state as it arrives from the
// split view: the people checked for the item plus any manual override
// amounts keyed by person id.
type Selection struct {
	ItemID  string
	People  []string
	Amounts map[string]decimal.Decimal
}

// BuildRules converts current selections into declarative split rules.
//
// An item with no assigned people gets no rule (it still counts toward
// the items subtotal during reconciliation, so the gap surfaces there).
// With no overrides the rule is EQUAL over the assigned set. With at
// least one override the rule is FIXED_AMOUNT: overridden people keep
// their amount and every non-overridden person defaults to the item's
// post-tax total divided by the non-overridden count. The defaults are
// NOT renormalized against the overrides, so a FIXED_AMOUNT rule can
// sum to more or less than the item total; reconciliation reports the
// gap instead of hiding it.
//
// BuildRules never fails. Person ids it has never heard of pass
// through untouched; the engine decides what to do with them.
func BuildRules(c Calculator, items []model.LineItem, sels []Selection) []model.SplitRule {
	byID := make(map[string]model.LineItem, len(items))
	for _, it := range items {
		byID[it.ItemID] = it
	}

	rules := make([]model.SplitRule, 0, len(sels))
	for _, sel := range sels {
		if len(sel.People) == 0 {
			continue
		}

		if len(sel.Amounts) == 0 {
			rules = append(rules, model.SplitRule{
				ItemID: sel.ItemID,
				Type:   model.RuleEqual,
				People: append([]string(nil), sel.People...),
			})
			continue
		}

		amounts := make(map[string]decimal.Decimal, len(sel.People))
		var defaulted []string
		for _, pid := range sel.People {
			if amt, ok := sel.Amounts[pid]; ok {
				amounts[pid] = amt
			} else {
				defaulted = append(defaulted, pid)
			}
		}

		if len(defaulted) > 0 {
			item, ok := byID[sel.ItemID]
			perPerson := decimal.Zero
			if ok {
				total := c.postTax(item.LineSubtotal, item.Taxable)
				perPerson = total.DivRound(decimal.NewFromInt(int64(len(defaulted))), 2)
			}
			for _, pid := range defaulted {
				amounts[pid] = perPerson
			}
		}

		rules = append(rules, model.SplitRule{
			ItemID:  sel.ItemID,
			Type:    model.RuleFixedAmount,
			People:  append([]string(nil), sel.People...),
			Amounts: amounts,
		})
	}
	return rules
}
