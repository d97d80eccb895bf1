package service

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/calculator"
	"backend/internal/csvcodec"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinalizeRejectedError reports a finalize attempt on a receipt whose
// totals do not reconcile. Status is left untouched and nothing is
// persisted. Field names the failing check; Difference is signed.
type FinalizeRejectedError struct {
	Field      string
	Difference decimal.Decimal
}

func (e *FinalizeRejectedError) Error() string {
	return fmt.Sprintf("finalize rejected: %s off by %s", e.Field, e.Difference.StringFixed(2))
}

// --- DTOs ---

type PersonInput struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type ItemSelectionInput struct {
	ItemID  string            `json:"item_id" binding:"required"`
	People  []string          `json:"people"`
	Amounts map[string]string `json:"amounts"` // person id → decimal string override
}

type SplitCalculateRequest struct {
	People []PersonInput        `json:"people" binding:"required,min=1"`
	Items  []ItemSelectionInput `json:"item_split_rules"`
}

type ImportedSelection struct {
	ItemID string   `json:"item_id"`
	People []string `json:"people"`
}

type ImportCSVResult struct {
	People     []model.Person      `json:"people"`
	Selections []ImportedSelection `json:"selections"`
	Receipt    model.Receipt       `json:"receipt"`
}

// --- Interface ---

type SplitService interface {
	Calculate(ctx context.Context, id string, req SplitCalculateRequest) (model.SplitResult, error)
	Finalize(ctx context.Context, id string, req SplitCalculateRequest) (model.SplitResult, error)
	ExportCSV(ctx context.Context, id string, req SplitCalculateRequest) ([]byte, error)
	ImportCSV(ctx context.Context, id string, data []byte) (ImportCSVResult, error)
}

type splitService struct {
	docRepo   repository.DocumentRepository
	txManager repository.TransactionManager
	calc      calculator.Calculator
	hub       *websocket.Hub
}

func NewSplitService(
	docRepo repository.DocumentRepository,
	txManager repository.TransactionManager,
	calc calculator.Calculator,
	hub *websocket.Hub,
) SplitService {
	return &splitService{
		docRepo:   docRepo,
		txManager: txManager,
		calc:      calc,
		hub:       hub,
	}
}

// --- Implementation ---

// Calculate rebuilds split rules from the current selections and runs
// them against the stored receipt snapshot. Stateless: nothing is
// persisted, and a failing validation is reported, not raised.
func (s *splitService) Calculate(ctx context.Context, id string, req SplitCalculateRequest) (model.SplitResult, error) {
	receipt, _, err := s.loadReceipt(ctx, id)
	if err != nil {
		return model.SplitResult{}, err
	}
	return s.compute(receipt, req)
}

// Finalize runs the same calculation, then persists the snapshot and
// advances the receipt to FINALIZED in one transaction. Both
// reconciliation checks must pass; a rejection changes nothing.
func (s *splitService) Finalize(ctx context.Context, id string, req SplitCalculateRequest) (model.SplitResult, error) {
	receipt, doc, err := s.loadReceipt(ctx, id)
	if err != nil {
		return model.SplitResult{}, err
	}
	if !model.CanTransition(doc.Status, model.StatusFinalized) {
		return model.SplitResult{}, fmt.Errorf("cannot finalize receipt in status %s", doc.Status)
	}

	result, err := s.compute(receipt, req)
	if err != nil {
		return model.SplitResult{}, err
	}
	if !result.Validation.IsValid {
		return model.SplitResult{}, &FinalizeRejectedError{
			Field:      "calculated_grand_total",
			Difference: result.Validation.CalculatedGrandTotal.Sub(result.Validation.ReportedGrandTotal),
		}
	}
	if !result.Validation.SplitMatches {
		return model.SplitResult{}, &FinalizeRejectedError{
			Field:      "split_total",
			Difference: result.Validation.SplitTotal.Sub(result.Validation.CalculatedGrandTotal),
		}
	}

	snapshot, err := json.Marshal(result)
	if err != nil {
		return model.SplitResult{}, fmt.Errorf("encode split snapshot: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		fresh, txErr := s.docRepo.FindByID(txCtx, doc.ID)
		if txErr != nil {
			return fmt.Errorf("failed to re-fetch receipt: %w", txErr)
		}
		if !model.CanTransition(fresh.Status, model.StatusFinalized) {
			return fmt.Errorf("cannot finalize receipt in status %s", fresh.Status)
		}
		fresh.Status = model.StatusFinalized
		fresh.SplitResults = string(snapshot)
		if txErr := s.docRepo.Update(txCtx, fresh); txErr != nil {
			return fmt.Errorf("failed to persist finalized split: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return model.SplitResult{}, err
	}

	s.hub.BroadcastStatus(doc.ID.String(), model.StatusFinalized)
	return result, nil
}

// ExportCSV renders the receipt with the requested selections as a
// spreadsheet. With no people in the request, a finalized receipt
// exports its persisted snapshot instead.
func (s *splitService) ExportCSV(ctx context.Context, id string, req SplitCalculateRequest) ([]byte, error) {
	receipt, doc, err := s.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}

	var people []model.Person
	var rules []model.SplitRule
	if len(req.People) == 0 && doc.SplitResults != "" {
		var snapshot model.SplitResult
		if err := json.Unmarshal([]byte(doc.SplitResults), &snapshot); err != nil {
			return nil, fmt.Errorf("decode stored split result: %w", err)
		}
		people = snapshot.Request.People
		rules = snapshot.Request.Rules
	} else {
		people = toModelPeople(req.People)
		sels, selErr := toSelections(req.Items)
		if selErr != nil {
			return nil, selErr
		}
		rules = calculator.BuildRules(s.calc, receipt.LineItems, sels)
	}

	return csvcodec.Export(s.calc, receipt, people, rules)
}

// ImportCSV replaces the receipt's line items with rows parsed from an
// exported spreadsheet. Participants are recovered from the header row,
// fees and discounts on the stored receipt are kept as-is.
func (s *splitService) ImportCSV(ctx context.Context, id string, data []byte) (ImportCSVResult, error) {
	receipt, doc, err := s.loadReceipt(ctx, id)
	if err != nil {
		return ImportCSVResult{}, err
	}
	if doc.Status == model.StatusFinalized {
		return ImportCSVResult{}, ErrReceiptFinalized
	}

	people, err := csvcodec.PeopleFromHeader(data)
	if err != nil {
		return ImportCSVResult{}, err
	}

	items, sels, err := csvcodec.Import(data, people)
	if err != nil {
		return ImportCSVResult{}, err
	}
	if len(items) == 0 {
		return ImportCSVResult{}, fmt.Errorf("csv contains no importable items")
	}

	receipt.LineItems = items
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineSubtotal)
	}
	receipt.SubtotalItems = subtotal

	body, err := json.Marshal(receipt)
	if err != nil {
		return ImportCSVResult{}, fmt.Errorf("encode receipt body: %w", err)
	}
	doc.ReceiptData = string(body)
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return ImportCSVResult{}, fmt.Errorf("failed to store imported receipt: %w", err)
	}

	out := ImportCSVResult{People: people, Receipt: receipt}
	for _, sel := range sels {
		out.Selections = append(out.Selections, ImportedSelection{ItemID: sel.ItemID, People: sel.People})
	}
	return out, nil
}

// --- Helpers ---

func (s *splitService) loadReceipt(ctx context.Context, id string) (model.Receipt, *model.ReceiptDocument, error) {
	doc, err := loadDocument(ctx, s.docRepo, id)
	if err != nil {
		return model.Receipt{}, nil, err
	}
	if doc.ReceiptData == "" {
		return model.Receipt{}, nil, ErrNoReceiptData
	}
	var receipt model.Receipt
	if err := json.Unmarshal([]byte(doc.ReceiptData), &receipt); err != nil {
		return model.Receipt{}, nil, fmt.Errorf("decode stored receipt: %w", err)
	}
	return receipt, doc, nil
}

func (s *splitService) compute(receipt model.Receipt, req SplitCalculateRequest) (model.SplitResult, error) {
	people := toModelPeople(req.People)
	sels, err := toSelections(req.Items)
	if err != nil {
		return model.SplitResult{}, err
	}

	rules := calculator.BuildRules(s.calc, receipt.LineItems, sels)
	shares, warnings := calculator.ComputeShares(s.calc, receipt, rules, people)
	validation := calculator.Validate(s.calc, receipt, shares)

	return model.SplitResult{
		SplitID:    uuid.NewString(),
		Shares:     shares,
		Validation: validation,
		Request:    model.SplitRequest{People: people, Rules: rules},
		Errors:     warnings,
	}, nil
}

func toModelPeople(in []PersonInput) []model.Person {
	people := make([]model.Person, 0, len(in))
	for _, p := range in {
		people = append(people, model.Person{ID: p.ID, Name: p.Name})
	}
	return people
}

func toSelections(in []ItemSelectionInput) ([]calculator.Selection, error) {
	sels := make([]calculator.Selection, 0, len(in))
	for _, item := range in {
		sel := calculator.Selection{ItemID: item.ItemID, People: item.People}
		if len(item.Amounts) > 0 {
			sel.Amounts = make(map[string]decimal.Decimal, len(item.Amounts))
			for pid, raw := range item.Amounts {
				amt, err := decimal.NewFromString(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid amount %q for person %s on item %s: %w", raw, pid, item.ItemID, err)
				}
				sel.Amounts[pid] = amt
			}
		}
		sels = append(sels, sel)
	}
	return sels, nil
}
