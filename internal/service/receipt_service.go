package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/client"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sentinel errors handlers map to HTTP statuses.
var (
	ErrReceiptNotFound  = errors.New("receipt not found")
	ErrReceiptFinalized = errors.New("receipt is finalized and can no longer be edited")
	ErrNoReceiptData    = errors.New("receipt has not been extracted yet")
)

// --- DTOs ---

type CreateReceiptRequest struct {
	Filenames  []string `json:"filenames" binding:"required,min=1"`
	Vendor     string   `json:"vendor"`
	GrandTotal string   `json:"grand_total"` // Decimal string, optional before extraction
}

type UpdateReceiptRequest struct {
	Vendor  *string        `json:"vendor"`
	Receipt *model.Receipt `json:"receipt"` // full reviewed body; replaces the stored snapshot
}

type ReceiptResponse struct {
	ID              string   `json:"id"`
	Filenames       []string `json:"filenames"`
	Vendor          string   `json:"vendor"`
	GrandTotal      *string  `json:"grand_total"`
	Status          string   `json:"status"`
	UploadTimestamp string   `json:"upload_timestamp"`
}

type ReceiptDetail struct {
	ReceiptResponse
	Receipt     *model.Receipt     `json:"receipt,omitempty"`
	SplitResult *model.SplitResult `json:"split_result,omitempty"`
}

// --- Interface ---

type ReceiptService interface {
	Create(ctx context.Context, req CreateReceiptRequest) (ReceiptResponse, error)
	List(ctx context.Context, status string, page, limit int) ([]ReceiptResponse, int64, error)
	Get(ctx context.Context, id string) (ReceiptDetail, error)
	Update(ctx context.Context, id string, req UpdateReceiptRequest) (ReceiptDetail, error)
	Delete(ctx context.Context, id string) error
	Extract(ctx context.Context, id string, uploads []client.Upload, preserve bool) (ReceiptDetail, error)
	Classify(ctx context.Context, id string) (ReceiptDetail, error)
}

type receiptService struct {
	docRepo   repository.DocumentRepository
	extractor *client.ExtractorClient
	hub       *websocket.Hub
}

func NewReceiptService(
	docRepo repository.DocumentRepository,
	extractor *client.ExtractorClient,
	hub *websocket.Hub,
) ReceiptService {
	return &receiptService{
		docRepo:   docRepo,
		extractor: extractor,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *receiptService) Create(ctx context.Context, req CreateReceiptRequest) (ReceiptResponse, error) {
	doc := model.ReceiptDocument{
		Vendor:          req.Vendor,
		Status:          model.StatusUploaded,
		UploadTimestamp: time.Now(),
	}

	names, err := json.Marshal(req.Filenames)
	if err != nil {
		return ReceiptResponse{}, fmt.Errorf("encode filenames: %w", err)
	}
	doc.Filenames = string(names)

	if req.GrandTotal != "" {
		total, parseErr := decimal.NewFromString(req.GrandTotal)
		if parseErr != nil {
			return ReceiptResponse{}, fmt.Errorf("invalid grand_total: %w", parseErr)
		}
		doc.GrandTotal = &total
	}

	if err := s.docRepo.Create(ctx, &doc); err != nil {
		return ReceiptResponse{}, fmt.Errorf("failed to create receipt: %w", err)
	}
	return toReceiptResponse(doc), nil
}

func (s *receiptService) List(ctx context.Context, status string, page, limit int) ([]ReceiptResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	docs, total, err := s.docRepo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch receipts: %w", err)
	}

	result := make([]ReceiptResponse, 0, len(docs))
	for _, d := range docs {
		result = append(result, toReceiptResponse(d))
	}
	return result, total, nil
}

func (s *receiptService) Get(ctx context.Context, id string) (ReceiptDetail, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return ReceiptDetail{}, err
	}
	return toReceiptDetail(*doc)
}

// Update applies reviewer edits. A finalized receipt is immutable.
func (s *receiptService) Update(ctx context.Context, id string, req UpdateReceiptRequest) (ReceiptDetail, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return ReceiptDetail{}, err
	}
	if doc.Status == model.StatusFinalized {
		return ReceiptDetail{}, ErrReceiptFinalized
	}

	if req.Vendor != nil {
		doc.Vendor = *req.Vendor
	}
	if req.Receipt != nil {
		req.Receipt.ReceiptID = doc.ID.String()
		req.Receipt.Status = doc.Status
		body, marshalErr := json.Marshal(req.Receipt)
		if marshalErr != nil {
			return ReceiptDetail{}, fmt.Errorf("encode receipt body: %w", marshalErr)
		}
		doc.ReceiptData = string(body)
		doc.GrandTotal = &req.Receipt.GrandTotal
		if req.Receipt.Vendor != "" {
			doc.Vendor = req.Receipt.Vendor
		}
	}

	if err := s.docRepo.Update(ctx, doc); err != nil {
		return ReceiptDetail{}, fmt.Errorf("failed to update receipt: %w", err)
	}
	return toReceiptDetail(*doc)
}

func (s *receiptService) Delete(ctx context.Context, id string) error {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return nil
}

// Extract runs the external extraction pass and stores the resulting
// snapshot. On extraction failure the stored body is cleared so stale
// data never masquerades as fresh, unless the caller asks to preserve
// the previous snapshot for a retry.
func (s *receiptService) Extract(ctx context.Context, id string, uploads []client.Upload, preserve bool) (ReceiptDetail, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return ReceiptDetail{}, err
	}
	if doc.Status == model.StatusFinalized {
		return ReceiptDetail{}, ErrReceiptFinalized
	}

	receipt, statusHint, err := s.extractor.Extract(ctx, uploads)
	if err != nil {
		if !preserve && doc.ReceiptData != "" {
			doc.ReceiptData = ""
			if clearErr := s.docRepo.Update(ctx, doc); clearErr != nil {
				return ReceiptDetail{}, fmt.Errorf("failed to clear receipt after extraction error: %w", clearErr)
			}
		}
		return ReceiptDetail{}, fmt.Errorf("extraction failed: %w", err)
	}

	// Re-extraction is allowed any time before finalize; the new
	// verdict simply replaces the old one.
	next := model.StatusExtracted
	if statusHint == model.StatusNeedsReview {
		next = model.StatusNeedsReview
	}

	receipt.ReceiptID = doc.ID.String()
	receipt.Status = next
	body, err := json.Marshal(receipt)
	if err != nil {
		return ReceiptDetail{}, fmt.Errorf("encode receipt body: %w", err)
	}

	doc.ReceiptData = string(body)
	doc.Status = next
	doc.GrandTotal = &receipt.GrandTotal
	if receipt.Vendor != "" {
		doc.Vendor = receipt.Vendor
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return ReceiptDetail{}, fmt.Errorf("failed to store extracted receipt: %w", err)
	}

	s.hub.BroadcastStatus(doc.ID.String(), doc.Status)
	return toReceiptDetail(*doc)
}

// Classify asks the taxability service to label item names and fills in
// the answers. Only items still UNKNOWN are touched; reviewer decisions
// on the others stand.
func (s *receiptService) Classify(ctx context.Context, id string) (ReceiptDetail, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return ReceiptDetail{}, err
	}
	if doc.Status == model.StatusFinalized {
		return ReceiptDetail{}, ErrReceiptFinalized
	}
	if doc.ReceiptData == "" {
		return ReceiptDetail{}, ErrNoReceiptData
	}

	var receipt model.Receipt
	if err := json.Unmarshal([]byte(doc.ReceiptData), &receipt); err != nil {
		return ReceiptDetail{}, fmt.Errorf("decode stored receipt: %w", err)
	}

	var unknown []string
	for _, it := range receipt.LineItems {
		if it.Taxable == model.TaxUnknown {
			unknown = append(unknown, it.NameRaw)
		}
	}
	if len(unknown) == 0 {
		return toReceiptDetail(*doc)
	}

	labels, err := s.extractor.Classify(ctx, unknown)
	if err != nil {
		return ReceiptDetail{}, fmt.Errorf("classification failed: %w", err)
	}

	for i := range receipt.LineItems {
		it := &receipt.LineItems[i]
		if it.Taxable != model.TaxUnknown {
			continue
		}
		if label, ok := labels[it.NameRaw]; ok {
			it.Taxable = label
		}
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return ReceiptDetail{}, fmt.Errorf("encode receipt body: %w", err)
	}
	doc.ReceiptData = string(body)
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return ReceiptDetail{}, fmt.Errorf("failed to store classified receipt: %w", err)
	}
	return toReceiptDetail(*doc)
}

// --- Helpers ---

func (s *receiptService) findDocument(ctx context.Context, id string) (*model.ReceiptDocument, error) {
	return loadDocument(ctx, s.docRepo, id)
}

func loadDocument(ctx context.Context, repo repository.DocumentRepository, id string) (*model.ReceiptDocument, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt id: %w", err)
	}
	doc, err := repo.FindByID(ctx, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return doc, nil
}

func toReceiptResponse(doc model.ReceiptDocument) ReceiptResponse {
	resp := ReceiptResponse{
		ID:              doc.ID.String(),
		Vendor:          doc.Vendor,
		Status:          doc.Status,
		UploadTimestamp: doc.UploadTimestamp.Format(time.RFC3339),
	}
	if doc.Filenames != "" {
		_ = json.Unmarshal([]byte(doc.Filenames), &resp.Filenames)
	}
	if doc.GrandTotal != nil {
		total := doc.GrandTotal.StringFixed(2)
		resp.GrandTotal = &total
	}
	return resp
}

func toReceiptDetail(doc model.ReceiptDocument) (ReceiptDetail, error) {
	detail := ReceiptDetail{ReceiptResponse: toReceiptResponse(doc)}

	if doc.ReceiptData != "" {
		var receipt model.Receipt
		if err := json.Unmarshal([]byte(doc.ReceiptData), &receipt); err != nil {
			return ReceiptDetail{}, fmt.Errorf("decode stored receipt: %w", err)
		}
		detail.Receipt = &receipt
	}
	if doc.SplitResults != "" {
		var split model.SplitResult
		if err := json.Unmarshal([]byte(doc.SplitResults), &split); err != nil {
			return ReceiptDetail{}, fmt.Errorf("decode stored split result: %w", err)
		}
		detail.SplitResult = &split
	}
	return detail, nil
}
