package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptDocument is the persisted envelope around a Receipt. The
// receipt body and finalized split snapshot are stored as JSON blobs;
// vendor/grand-total/status are denormalized for the list view.
type ReceiptDocument struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Filenames       string           `gorm:"type:jsonb" json:"-"` // JSON array of uploaded image names
	Vendor          string           `gorm:"type:varchar(120)" json:"vendor"`
	GrandTotal      *decimal.Decimal `gorm:"type:decimal(18,4)" json:"grand_total"`
	Status          string           `gorm:"type:varchar(20);not null;default:'UPLOADED';index" json:"status"`
	ReceiptData     string           `gorm:"type:jsonb" json:"-"` // marshaled Receipt, empty until extraction
	SplitResults    string           `gorm:"type:jsonb" json:"-"` // marshaled SplitResult, set at finalize
	UploadTimestamp time.Time        `gorm:"not null;index" json:"upload_timestamp"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
