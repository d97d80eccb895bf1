package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.ReceiptDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ReceiptDocument, error)
	Update(ctx context.Context, doc *model.ReceiptDocument) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status string, page, limit int) ([]model.ReceiptDocument, int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.ReceiptDocument) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ReceiptDocument, error) {
	var doc model.ReceiptDocument
	if err := GetDB(ctx, r.db).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.ReceiptDocument) error {
	return GetDB(ctx, r.db).Save(doc).Error
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.ReceiptDocument{}, "id = ?", id).Error
}

func (r *documentRepository) List(ctx context.Context, status string, page, limit int) ([]model.ReceiptDocument, int64, error) {
	var docs []model.ReceiptDocument
	var total int64

	db := GetDB(ctx, r.db).Model(&model.ReceiptDocument{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("upload_timestamp desc").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}
