package model

import (
	"time"

	"github.com/google/uuid"
)

// Tax id lengths: a DNI has 8 digits, a RUC has 11.
const (
	DNILength = 8
	RUCLength = 11
)

// Client represents a customer of the studio, keyed by tax id. At most one
// active client may hold a given tax id; inactive rows are kept for
// reactivation instead of re-creation.
type Client struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Address    string    `gorm:"type:varchar(255)" json:"address"`
	Phone      string    `gorm:"type:varchar(20)" json:"phone"`
	RucDni     string    `gorm:"type:varchar(11);not null;index" json:"ruc_dni"`
	Province   string    `gorm:"type:varchar(100)" json:"province"`
	Department string    `gorm:"type:varchar(100)" json:"department"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
