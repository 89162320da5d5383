package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Audited entity types
const (
	EntityUser      = "USER"
	EntityRole      = "ROLE"
	EntityClient    = "CLIENT"
	EntityProject   = "PROJECT"
	EntityQuotation = "QUOTATION"
)

// Audit is an immutable append-only record of who did what to which entity.
// Rows are never updated or deleted.
type Audit struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityID      uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`
	EntityType    string    `gorm:"type:varchar(50);not null;index" json:"entity_type"`
	Action        string    `gorm:"type:varchar(20);not null" json:"action"`
	PerformedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"performed_by_id"`
	PerformedBy   *User     `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
