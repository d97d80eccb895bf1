package calculator

import (
	"fmt"

	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// ComputeShares evaluates the split rules against the receipt snapshot
// and produces one Share per person, in the order people were given.
//
// Every allocation is rounded to cents independently; sub-cent drift
// across a rule's participants is accepted and left to reconciliation
// rather than redistributed. A rule naming an unknown item or person
// does not fail the calculation: the allocation is skipped and a
// warning is appended to the returned error list, so callers never see
// a silently short share.
func ComputeShares(c Calculator, receipt model.Receipt, rules []model.SplitRule, people []model.Person) ([]model.Share, []string) {
	var errs []string

	shares := make([]model.Share, len(people))
	index := make(map[string]*model.Share, len(people))
	for i, p := range people {
		shares[i] = model.Share{
			PersonID:       p.ID,
			DisplayName:    p.Name,
			ItemTotal:      decimal.Zero,
			ItemTax:        decimal.Zero,
			DiscountCredit: decimal.Zero,
		}
		index[p.ID] = &shares[i]
	}

	itemsByID := make(map[string]model.LineItem, len(receipt.LineItems))
	for _, it := range receipt.LineItems {
		itemsByID[it.ItemID] = it
	}

	for _, rule := range rules {
		item, ok := itemsByID[rule.ItemID]
		if !ok {
			errs = append(errs, fmt.Sprintf("split rule references unknown item %q; skipped", rule.ItemID))
			continue
		}
		if len(rule.People) == 0 {
			continue
		}

		switch rule.Type {
		case model.RuleEqual:
			n := decimal.NewFromInt(int64(len(rule.People)))
			perSub := item.LineSubtotal.DivRound(n, 2)
			perTax := c.Tax(item.LineSubtotal, item.Taxable).DivRound(n, 2)
			for _, pid := range rule.People {
				share, known := index[pid]
				if !known {
					errs = append(errs, fmt.Sprintf("rule for item %q references unknown person %q; portion unallocated", rule.ItemID, pid))
					continue
				}
				share.ItemTotal = share.ItemTotal.Add(perSub)
				share.ItemTax = share.ItemTax.Add(perTax)
			}

		case model.RuleFixedAmount:
			// Amounts are tax-inclusive; people absent from the map get
			// the BuildRules default recomputed here so persisted rules
			// stay evaluable on their own.
			var defaulted []string
			for _, pid := range rule.People {
				if _, has := rule.Amounts[pid]; !has {
					defaulted = append(defaulted, pid)
				}
			}
			fallback := decimal.Zero
			if len(defaulted) > 0 {
				total := c.postTax(item.LineSubtotal, item.Taxable)
				fallback = total.DivRound(decimal.NewFromInt(int64(len(defaulted))), 2)
			}
			for _, pid := range rule.People {
				share, known := index[pid]
				if !known {
					errs = append(errs, fmt.Sprintf("rule for item %q references unknown person %q; portion unallocated", rule.ItemID, pid))
					continue
				}
				amt, has := rule.Amounts[pid]
				if !has {
					amt = fallback
				}
				share.ItemTotal = share.ItemTotal.Add(amt)
			}

		default:
			errs = append(errs, fmt.Sprintf("item %q: unsupported split type %q", rule.ItemID, rule.Type))
		}
	}

	// Fees and discounts are scoped independently of item rules: an
	// explicit split_among subset, or every current person.
	for _, fee := range receipt.Fees {
		per, scope := c.allocate(fee.Amount, fee.Taxable, fee.SplitAmong, people)
		for _, pid := range scope {
			share, known := index[pid]
			if !known {
				errs = append(errs, fmt.Sprintf("fee %q split_among references unknown person %q; portion unallocated", fee.FeeID, pid))
				continue
			}
			share.Fees = append(share.Fees, model.FeeShare{FeeID: fee.FeeID, Amount: per})
		}
	}

	for _, disc := range receipt.Discounts {
		per, scope := c.allocate(disc.Amount, disc.Taxable, disc.SplitAmong, people)
		for _, pid := range scope {
			share, known := index[pid]
			if !known {
				errs = append(errs, fmt.Sprintf("discount %q split_among references unknown person %q; portion unallocated", disc.DiscountID, pid))
				continue
			}
			share.DiscountCredit = share.DiscountCredit.Add(per)
		}
	}

	for i := range shares {
		owed := shares[i].ItemTotal.Add(shares[i].ItemTax)
		for _, f := range shares[i].Fees {
			owed = owed.Add(f.Amount)
		}
		// Never clamped: a large discount legitimately goes negative.
		shares[i].AmountOwed = owed.Sub(shares[i].DiscountCredit)
	}

	return shares, errs
}

// allocate resolves a fee/discount scope and the per-person post-tax
// portion. The divisor is the scope size even if some scoped ids turn
// out unknown; those portions stay unallocated.
func (c Calculator) allocate(amount decimal.Decimal, taxable string, splitAmong []string, people []model.Person) (decimal.Decimal, []string) {
	scope := splitAmong
	if len(scope) == 0 {
		scope = make([]string, len(people))
		for i, p := range people {
			scope[i] = p.ID
		}
	}
	if len(scope) == 0 {
		return decimal.Zero, nil
	}
	per := c.postTax(amount, taxable).DivRound(decimal.NewFromInt(int64(len(scope))), 2)
	return per, scope
}
