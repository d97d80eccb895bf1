package calculator

import (
	"testing"

	"backend/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCalc() Calculator {
	return New(dec("0.13"), dec("0.02"))
}

func item(id, name, price, taxable string) model.LineItem {
	return model.LineItem{
		ItemID:       id,
		NameRaw:      name,
		Quantity:     dec("1"),
		UnitPrice:    dec(price),
		LineSubtotal: dec(price),
		Taxable:      taxable,
	}
}

func TestTax(t *testing.T) {
	c := testCalc()
	tests := []struct {
		name    string
		base    string
		taxable string
		want    string
	}{
		{"taxable base", "30.00", model.Taxable, "3.90"},
		{"non-taxable base", "30.00", model.NonTaxable, "0"},
		{"unknown is not taxed", "30.00", model.TaxUnknown, "0"},
		{"negative base yields negative tax", "-10.00", model.Taxable, "-1.30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Tax(dec(tt.base), tt.taxable)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("Tax(%s, %s) = %s, want %s", tt.base, tt.taxable, got, tt.want)
			}
		})
	}
}

func TestBuildRules(t *testing.T) {
	c := testCalc()
	items := []model.LineItem{
		item("i1", "Pizza", "30.00", model.Taxable),
		item("i2", "Salad", "12.00", model.NonTaxable),
	}

	t.Run("no overrides yields EQUAL", func(t *testing.T) {
		rules := BuildRules(c, items, []Selection{
			{ItemID: "i1", People: []string{"p1", "p2"}},
		})
		if len(rules) != 1 {
			t.Fatalf("got %d rules, want 1", len(rules))
		}
		if rules[0].Type != model.RuleEqual {
			t.Errorf("rule type = %s, want EQUAL", rules[0].Type)
		}
		if len(rules[0].People) != 2 {
			t.Errorf("rule people = %v, want 2 entries", rules[0].People)
		}
	})

	t.Run("unassigned item gets no rule", func(t *testing.T) {
		rules := BuildRules(c, items, []Selection{
			{ItemID: "i1", People: nil},
			{ItemID: "i2", People: []string{"p1"}},
		})
		if len(rules) != 1 || rules[0].ItemID != "i2" {
			t.Fatalf("got %v, want single rule for i2", rules)
		}
	})

	t.Run("override yields FIXED_AMOUNT with defaults for the rest", func(t *testing.T) {
		rules := BuildRules(c, items, []Selection{
			{
				ItemID:  "i1",
				People:  []string{"p1", "p2", "p3"},
				Amounts: map[string]decimal.Decimal{"p1": dec("5.00")},
			},
		})
		if len(rules) != 1 || rules[0].Type != model.RuleFixedAmount {
			t.Fatalf("got %v, want one FIXED_AMOUNT rule", rules)
		}
		amounts := rules[0].Amounts
		if !amounts["p1"].Equal(dec("5.00")) {
			t.Errorf("p1 amount = %s, want override 5.00", amounts["p1"])
		}
		// Non-overridden people split the full post-tax total among
		// themselves: 30.00 × 1.13 / 2 = 16.95. Deliberately not
		// renormalized against p1's override.
		for _, pid := range []string{"p2", "p3"} {
			if !amounts[pid].Equal(dec("16.95")) {
				t.Errorf("%s amount = %s, want default 16.95", pid, amounts[pid])
			}
		}
	})
}

func TestComputeSharesEqual(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}}
	receipt := model.Receipt{
		LineItems:  []model.LineItem{item("i1", "Pizza", "30.00", model.Taxable)},
		GrandTotal: dec("33.90"),
	}
	rules := []model.SplitRule{{ItemID: "i1", Type: model.RuleEqual, People: []string{"p1", "p2"}}}

	shares, errs := ComputeShares(c, receipt, rules, people)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for _, s := range shares {
		// (30.00 + 3.90) / 2 = 16.95 each
		if !s.AmountOwed.Equal(dec("16.95")) {
			t.Errorf("%s owes %s, want 16.95", s.DisplayName, s.AmountOwed)
		}
		if !s.ItemTotal.Equal(dec("15.00")) || !s.ItemTax.Equal(dec("1.95")) {
			t.Errorf("%s breakdown = %s + %s, want 15.00 + 1.95", s.DisplayName, s.ItemTotal, s.ItemTax)
		}
	}
}

func TestComputeSharesFixedAmount(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}}
	receipt := model.Receipt{
		LineItems: []model.LineItem{item("i1", "Pizza", "30.00", model.Taxable)},
	}
	rules := []model.SplitRule{{
		ItemID:  "i1",
		Type:    model.RuleFixedAmount,
		People:  []string{"p1", "p2"},
		Amounts: map[string]decimal.Decimal{"p1": dec("10.00")},
	}}

	shares, errs := ComputeShares(c, receipt, rules, people)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !shares[0].AmountOwed.Equal(dec("10.00")) {
		t.Errorf("Alice owes %s, want her fixed 10.00", shares[0].AmountOwed)
	}
	// Bob defaults to the whole post-tax total over the one defaulted
	// person: 33.90. The rule sums to 43.90, above the item total;
	// reconciliation reports that, the engine does not correct it.
	if !shares[1].AmountOwed.Equal(dec("33.90")) {
		t.Errorf("Bob owes %s, want default 33.90", shares[1].AmountOwed)
	}
}

func TestComputeSharesFees(t *testing.T) {
	c := testCalc()
	people := []model.Person{
		{ID: "p1", Name: "A"}, {ID: "p2", Name: "B"},
		{ID: "p3", Name: "C"}, {ID: "p4", Name: "D"},
	}
	receipt := model.Receipt{
		Fees: []model.Fee{{FeeID: "f1", Type: "SERVICE", Amount: dec("4.00"), Taxable: model.Taxable}},
	}

	shares, errs := ComputeShares(c, receipt, nil, people)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for _, s := range shares {
		// 4.00 × 1.13 / 4 = 1.13 each
		if !s.AmountOwed.Equal(dec("1.13")) {
			t.Errorf("%s owes %s, want 1.13", s.PersonID, s.AmountOwed)
		}
	}
}

func TestComputeSharesFeeSubsetScope(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	receipt := model.Receipt{
		Fees: []model.Fee{{
			FeeID:      "f1",
			Amount:     dec("6.00"),
			Taxable:    model.NonTaxable,
			SplitAmong: []string{"p1", "p3"},
		}},
	}

	shares, _ := ComputeShares(c, receipt, nil, people)
	if !shares[0].AmountOwed.Equal(dec("3.00")) || !shares[2].AmountOwed.Equal(dec("3.00")) {
		t.Errorf("scoped people owe %s/%s, want 3.00 each", shares[0].AmountOwed, shares[2].AmountOwed)
	}
	if !shares[1].AmountOwed.IsZero() {
		t.Errorf("p2 owes %s, want 0 (outside fee scope)", shares[1].AmountOwed)
	}
}

func TestComputeSharesDiscount(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	receipt := model.Receipt{
		Discounts: []model.Discount{{DiscountID: "d1", Amount: dec("10.00"), Taxable: model.NonTaxable}},
	}

	shares, _ := ComputeShares(c, receipt, nil, people)
	for _, s := range shares {
		// 10.00 / 3 = 3.33 each, 0.01 remainder left as expected drift.
		// A discount with nothing else owed goes negative, not zero.
		if !s.AmountOwed.Equal(dec("-3.33")) {
			t.Errorf("%s owes %s, want -3.33", s.PersonID, s.AmountOwed)
		}
	}
}

func TestComputeSharesUnknownPerson(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1", Name: "Alice"}}
	receipt := model.Receipt{
		LineItems: []model.LineItem{item("i1", "Pizza", "20.00", model.NonTaxable)},
	}
	rules := []model.SplitRule{{ItemID: "i1", Type: model.RuleEqual, People: []string{"p1", "ghost"}}}

	shares, errs := ComputeShares(c, receipt, rules, people)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1 warning for the unknown person", len(errs))
	}
	// The divisor stays 2; the ghost's half is simply unallocated.
	if !shares[0].AmountOwed.Equal(dec("10.00")) {
		t.Errorf("Alice owes %s, want 10.00", shares[0].AmountOwed)
	}
}

func TestComputeSharesIdempotent(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1", Name: "A"}, {ID: "p2", Name: "B"}}
	receipt := model.Receipt{
		LineItems: []model.LineItem{
			item("i1", "Pizza", "30.00", model.Taxable),
			item("i2", "Salad", "12.50", model.NonTaxable),
		},
		Fees:      []model.Fee{{FeeID: "f1", Amount: dec("2.50"), Taxable: model.Taxable}},
		Discounts: []model.Discount{{DiscountID: "d1", Amount: dec("5.00"), Taxable: model.NonTaxable}},
	}
	rules := []model.SplitRule{
		{ItemID: "i1", Type: model.RuleEqual, People: []string{"p1", "p2"}},
		{ItemID: "i2", Type: model.RuleEqual, People: []string{"p2"}},
	}

	first, _ := ComputeShares(c, receipt, rules, people)
	second, _ := ComputeShares(c, receipt, rules, people)
	if len(first) != len(second) {
		t.Fatalf("share counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PersonID != second[i].PersonID || !first[i].AmountOwed.Equal(second[i].AmountOwed) {
			t.Errorf("share %d differs between identical runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEqualSplitSumsToPostTaxTotal(t *testing.T) {
	c := testCalc()
	people := []model.Person{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	receipt := model.Receipt{
		LineItems: []model.LineItem{item("i1", "Wine", "25.00", model.Taxable)},
	}
	rules := []model.SplitRule{{ItemID: "i1", Type: model.RuleEqual, People: []string{"p1", "p2", "p3"}}}

	shares, _ := ComputeShares(c, receipt, rules, people)
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.AmountOwed)
	}
	// Post-tax total is 28.25; per-person rounding may drift up to
	// 0.01 × |people|.
	drift := sum.Sub(dec("28.25")).Abs()
	if drift.GreaterThan(dec("0.03")) {
		t.Errorf("shares sum %s drifts %s from 28.25, beyond 0.01 × 3", sum, drift)
	}
}

func TestValidate(t *testing.T) {
	c := testCalc()

	base := model.Receipt{
		LineItems: []model.LineItem{
			item("i1", "Pizza", "30.00", model.Taxable),
			item("i2", "Salad", "12.00", model.NonTaxable),
		},
		Fees:      []model.Fee{{FeeID: "f1", Amount: dec("4.00"), Taxable: model.Taxable}},
		Discounts: []model.Discount{{DiscountID: "d1", Amount: dec("10.00"), Taxable: model.NonTaxable}},
	}
	// calculated: 42.00 + 3.90 + 4.52 − 10.00 = 40.42

	tests := []struct {
		name      string
		reported  string
		wantValid bool
	}{
		{"exact match", "40.42", true},
		{"within tolerance", "40.41", true},
		{"at tolerance boundary", "40.44", false}, // diff 0.02 is not < 0.02
		{"beyond tolerance", "40.45", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			r.GrandTotal = dec(tt.reported)
			v := Validate(c, r, nil)
			if !v.CalculatedItemsSubtotal.Equal(dec("42.00")) {
				t.Errorf("items subtotal = %s, want 42.00", v.CalculatedItemsSubtotal)
			}
			if !v.CalculatedItemsTax.Equal(dec("3.90")) {
				t.Errorf("items tax = %s, want 3.90", v.CalculatedItemsTax)
			}
			if !v.CalculatedGrandTotal.Equal(dec("40.42")) {
				t.Errorf("grand total = %s, want 40.42", v.CalculatedGrandTotal)
			}
			if v.IsValid != tt.wantValid {
				t.Errorf("is_valid = %v, want %v (reported %s)", v.IsValid, tt.wantValid, tt.reported)
			}
		})
	}
}

func TestValidateToleranceBoundary(t *testing.T) {
	c := testCalc()
	r := model.Receipt{
		LineItems:  []model.LineItem{item("i1", "Stuff", "100.00", model.NonTaxable)},
		GrandTotal: dec("100.00"),
	}

	// Shares off by 0.01: valid. Off by 0.03: not.
	near := []model.Share{{PersonID: "p1", AmountOwed: dec("99.99")}}
	v := Validate(c, r, near)
	if !v.SplitMatches {
		t.Errorf("split 99.99 vs 100.00 should match within 0.02")
	}

	far := []model.Share{{PersonID: "p1", AmountOwed: dec("100.03")}}
	v = Validate(c, r, far)
	if v.SplitMatches {
		t.Errorf("split 100.03 vs 100.00 should not match")
	}
	if !v.Difference.Equal(dec("0.03")) {
		t.Errorf("difference = %s, want signed +0.03", v.Difference)
	}
}

func TestValidateSignedDifference(t *testing.T) {
	c := testCalc()
	r := model.Receipt{
		LineItems:  []model.LineItem{item("i1", "Stuff", "50.00", model.NonTaxable)},
		GrandTotal: dec("50.00"),
	}
	shares := []model.Share{{PersonID: "p1", AmountOwed: dec("48.00")}}
	v := Validate(c, r, shares)
	if !v.Difference.Equal(dec("-2.00")) {
		t.Errorf("difference = %s, want -2.00 for under-allocation", v.Difference)
	}
}

func TestSubtotalCountsUnassignedItems(t *testing.T) {
	c := testCalc()
	r := model.Receipt{
		LineItems: []model.LineItem{
			item("i1", "Assigned", "10.00", model.NonTaxable),
			item("i2", "Orphan", "5.00", model.NonTaxable),
		},
		GrandTotal: dec("15.00"),
	}
	people := []model.Person{{ID: "p1"}}
	rules := []model.SplitRule{{ItemID: "i1", Type: model.RuleEqual, People: []string{"p1"}}}

	shares, _ := ComputeShares(c, r, rules, people)
	v := Validate(c, r, shares)
	if !v.CalculatedItemsSubtotal.Equal(dec("15.00")) {
		t.Errorf("subtotal = %s, want 15.00 including the unassigned item", v.CalculatedItemsSubtotal)
	}
	// The orphan item's 5.00 shows up as under-allocation.
	if !v.Difference.Equal(dec("-5.00")) {
		t.Errorf("difference = %s, want -5.00", v.Difference)
	}
	if v.SplitMatches {
		t.Errorf("split should not match calculated total with an unassigned item")
	}
}
