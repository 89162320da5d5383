package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account managed by the administration backend.
// Users are never hard-deleted once they have audited activity; deactivation
// flips IsActive instead so history stays resolvable.
type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name               string     `gorm:"type:varchar(255);not null" json:"name"`
	Email              string     `gorm:"type:varchar(255);not null;index" json:"email"`
	Password           string     `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash, never serialized
	Phone              string     `gorm:"type:varchar(20)" json:"phone"`
	IsSuperAdmin       bool       `gorm:"default:false" json:"is_super_admin"`
	IsActive           bool       `gorm:"default:true;index" json:"is_active"`
	MustChangePassword bool       `gorm:"default:true" json:"must_change_password"`
	LastLogin          *time.Time `json:"last_login"`
	Roles              []UserRole `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"roles"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserRole links a user to a role. The link carries its own lifecycle state:
// deactivating a user deactivates its links, reactivation flips them back.
type UserRole struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	RoleID    uuid.UUID `gorm:"type:uuid;not null;index" json:"role_id"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"role"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
