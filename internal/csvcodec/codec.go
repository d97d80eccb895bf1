package csvcodec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"backend/internal/calculator"
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// Fixed leading columns of the export table. Person columns follow,
// first one assignment column per person, then one "(Pays)" column.
var baseHeaders = []string{"Item Name", "Qty", "Price", "HST?", "HST Amount", "Price incl Tax"}

const adjustmentsMarker = "Fees & Adjustments"

func taxFlag(taxable string) string {
	switch taxable {
	case model.Taxable:
		return "Yes"
	case model.NonTaxable:
		return "No"
	default:
		return ""
	}
}

// Export renders the receipt and its split rules as a spreadsheet-ready
// CSV: one row per item with per-person assignment marks and pay
// amounts, then a Fees & Adjustments section for fees and discounts.
// Discounts appear as negative rows.
func Export(c calculator.Calculator, receipt model.Receipt, people []model.Person, rules []model.SplitRule) ([]byte, error) {
	headers := append([]string(nil), baseHeaders...)
	for _, p := range people {
		headers = append(headers, p.Name)
	}
	for _, p := range people {
		headers = append(headers, p.Name+" (Pays)")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	rulesByItem := make(map[string]model.SplitRule, len(rules))
	for _, r := range rules {
		rulesByItem[r.ItemID] = r
	}

	for _, it := range receipt.LineItems {
		rule, hasRule := rulesByItem[it.ItemID]
		assigned := make(map[string]bool, len(rule.People))
		for _, pid := range rule.People {
			assigned[pid] = true
		}

		tax := c.Tax(it.LineSubtotal, it.Taxable)
		inclTax := it.LineSubtotal.Add(tax)

		row := []string{
			it.NameRaw,
			it.Quantity.String(),
			it.UnitPrice.StringFixed(2),
			taxFlag(it.Taxable),
			tax.StringFixed(2),
			inclTax.StringFixed(2),
		}
		for _, p := range people {
			if assigned[p.ID] {
				row = append(row, "X")
			} else {
				row = append(row, "")
			}
		}
		for _, p := range people {
			row = append(row, payCell(rule, hasRule, assigned, p.ID, inclTax))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write item row: %w", err)
		}
	}

	if len(receipt.Fees) > 0 || len(receipt.Discounts) > 0 {
		blank := make([]string, len(headers))
		if err := w.Write(blank); err != nil {
			return nil, fmt.Errorf("write separator row: %w", err)
		}
		marker := make([]string, len(headers))
		marker[0] = adjustmentsMarker
		if err := w.Write(marker); err != nil {
			return nil, fmt.Errorf("write adjustments marker: %w", err)
		}

		for _, fee := range receipt.Fees {
			if err := w.Write(adjustmentRow(c, headers, people, fee.Type, fee.Amount, fee.Taxable, fee.SplitAmong)); err != nil {
				return nil, fmt.Errorf("write fee row: %w", err)
			}
		}
		for _, disc := range receipt.Discounts {
			if err := w.Write(adjustmentRow(c, headers, people, disc.Description, disc.Amount.Neg(), disc.Taxable, disc.SplitAmong)); err != nil {
				return nil, fmt.Errorf("write discount row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func payCell(rule model.SplitRule, hasRule bool, assigned map[string]bool, personID string, inclTax decimal.Decimal) string {
	if !hasRule || !assigned[personID] {
		return ""
	}
	if rule.Type == model.RuleFixedAmount {
		if amt, ok := rule.Amounts[personID]; ok {
			return amt.StringFixed(2)
		}
	}
	n := decimal.NewFromInt(int64(len(rule.People)))
	return inclTax.DivRound(n, 2).StringFixed(2)
}

func adjustmentRow(c calculator.Calculator, headers []string, people []model.Person, name string, amount decimal.Decimal, taxable string, splitAmong []string) []string {
	scoped := make(map[string]bool, len(splitAmong))
	for _, pid := range splitAmong {
		scoped[pid] = true
	}
	inScope := func(pid string) bool {
		return len(splitAmong) == 0 || scoped[pid]
	}

	n := int64(len(splitAmong))
	if n == 0 {
		n = int64(len(people))
	}
	total := amount.Add(c.Tax(amount, taxable))
	per := decimal.Zero
	if n > 0 {
		per = total.DivRound(decimal.NewFromInt(n), 2)
	}

	row := []string{
		name,
		"",
		amount.StringFixed(2),
		taxFlag(taxable),
		c.Tax(amount, taxable).StringFixed(2),
		total.StringFixed(2),
	}
	for _, p := range people {
		if inScope(p.ID) {
			row = append(row, "X")
		} else {
			row = append(row, "")
		}
	}
	for _, p := range people {
		if inScope(p.ID) {
			row = append(row, per.StringFixed(2))
		} else {
			row = append(row, "")
		}
	}
	for len(row) < len(headers) {
		row = append(row, "")
	}
	return row
}

// PeopleFromHeader recovers the participant list from an exported CSV's
// header row: every column that is not one of the fixed headers, up to
// the first "(Pays)" column. Columns are matched by text, so headers
// with the optional tax columns omitted parse the same way.
func PeopleFromHeader(data []byte) ([]model.Person, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	fixed := make(map[string]bool, len(baseHeaders))
	for _, h := range baseHeaders {
		fixed[h] = true
	}

	var people []model.Person
	for _, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" || fixed[name] {
			continue
		}
		if strings.HasSuffix(name, " (Pays)") {
			break
		}
		people = append(people, model.Person{ID: fmt.Sprintf("person-%d", len(people)+1), Name: name})
	}
	if len(people) == 0 {
		return nil, fmt.Errorf("csv header has no participant columns")
	}
	return people, nil
}

// Import parses an exported CSV back into line items and per-item
// person selections. Item Name, Qty and Price columns are required;
// a missing HST? column leaves taxability unknown rather than guessing.
// Person columns are matched by display name against the given people,
// and everything from the Fees & Adjustments marker on is ignored.
func Import(data []byte, people []model.Person) ([]model.LineItem, []calculator.Selection, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("csv has no data rows")
	}

	headers := records[0]
	col := func(name string) int {
		for i, h := range headers {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		return -1
	}

	nameIdx, qtyIdx, priceIdx, hstIdx := col("Item Name"), col("Qty"), col("Price"), col("HST?")
	if nameIdx == -1 || qtyIdx == -1 || priceIdx == -1 {
		return nil, nil, fmt.Errorf("csv missing required columns (Item Name, Qty, Price)")
	}

	personCols := make(map[string]int, len(people))
	for _, p := range people {
		if idx := col(p.Name); idx != -1 {
			personCols[p.ID] = idx
		}
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var items []model.LineItem
	var sels []calculator.Selection
	for _, row := range records[1:] {
		name := cell(row, nameIdx)
		if name == "" {
			continue
		}
		if name == adjustmentsMarker {
			break
		}

		qty, err := decimal.NewFromString(cell(row, qtyIdx))
		if err != nil || qty.IsZero() {
			continue
		}
		price, err := decimal.NewFromString(cell(row, priceIdx))
		if err != nil || price.IsZero() {
			continue
		}

		taxable := model.TaxUnknown
		if hstIdx != -1 {
			switch strings.ToLower(cell(row, hstIdx)) {
			case "yes":
				taxable = model.Taxable
			case "no":
				taxable = model.NonTaxable
			}
		}

		itemID := fmt.Sprintf("item-%d", len(items)+1)
		items = append(items, model.LineItem{
			ItemID:       itemID,
			NameRaw:      name,
			Quantity:     qty,
			UnitPrice:    price,
			LineSubtotal: qty.Mul(price),
			Taxable:      taxable,
		})

		var selected []string
		for _, p := range people {
			idx, ok := personCols[p.ID]
			if ok && strings.EqualFold(cell(row, idx), "X") {
				selected = append(selected, p.ID)
			}
		}
		if len(selected) > 0 {
			sels = append(sels, calculator.Selection{ItemID: itemID, People: selected})
		}
	}

	return items, sels, nil
}
