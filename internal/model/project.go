package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project status values
const (
	ProjectStatusDraft      = "DRAFT"
	ProjectStatusInProgress = "IN_PROGRESS"
	ProjectStatusDone       = "DONE"
)

// Quotation status values
const (
	QuotationStatusPending  = "PENDING"
	QuotationStatusApproved = "APPROVED"
	QuotationStatusRejected = "REJECTED"
)

// Project is a design project tied to an active client.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      Client    `gorm:"foreignKey:ClientID" json:"client"`
	Status      string    `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Quotation is a priced offer attached to a project.
type Quotation struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	ProjectID uuid.UUID       `gorm:"type:uuid;not null;index" json:"project_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status    string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
