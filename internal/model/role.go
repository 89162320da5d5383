package model

import (
	"time"

	"github.com/google/uuid"
)

// SuperAdminRoleName is the single protected role seeded at bootstrap. It can
// never be updated, deleted, deactivated or assigned through the mutation API.
const SuperAdminRoleName = "SUPER_ADMIN"

// Role groups module-permission grants and is assigned to users via UserRole.
type Role struct {
	ID          uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string                 `gorm:"type:varchar(50);not null;index" json:"name"`
	Description string                 `gorm:"type:text" json:"description"`
	IsActive    bool                   `gorm:"default:true;index" json:"is_active"`
	Permissions []RoleModulePermission `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"permissions"`
	CreatedAt   time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsProtected reports whether the role is the immutable superadmin role.
func (r Role) IsProtected() bool {
	return r.Name == SuperAdminRoleName
}

// RoleModulePermission links a role to one module-permission grant.
type RoleModulePermission struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoleID             uuid.UUID        `gorm:"type:uuid;not null;index" json:"role_id"`
	ModulePermissionID uuid.UUID        `gorm:"type:uuid;not null;index" json:"module_permission_id"`
	ModulePermission   ModulePermission `gorm:"foreignKey:ModulePermissionID" json:"module_permission"`
	IsActive           bool             `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
}
