package model

import (
	"github.com/google/uuid"
)

// Seeded module codes.
const (
	ModuleUsers      = "USERS"
	ModuleRoles      = "ROLES"
	ModuleClients    = "CLIENTS"
	ModuleProjects   = "PROJECTS"
	ModuleQuotations = "QUOTATIONS"
	ModuleAudit      = "AUDIT"
)

// Seeded permission codes.
const (
	PermCreate = "CREATE"
	PermRead   = "READ"
	PermUpdate = "UPDATE"
	PermDelete = "DELETE"
)

// Module is a static catalog entry for one area of the application.
type Module struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g. "CLIENTS"
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
}

// Permission is a static catalog entry for one action kind.
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // CREATE, READ, UPDATE, DELETE
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
}

// ModulePermission is the grant unit: the cross join of one module with one
// permission, seeded once. Roles reference these rows.
type ModulePermission struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ModuleID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_module_permission,unique" json:"module_id"`
	PermissionID uuid.UUID  `gorm:"type:uuid;not null;index:idx_module_permission,unique" json:"permission_id"`
	Module       Module     `gorm:"foreignKey:ModuleID" json:"module"`
	Permission   Permission `gorm:"foreignKey:PermissionID" json:"permission"`
}
