package database

import (
	"atelier/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM and migrates the
// schema.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&model.Module{},
		&model.Permission{},
		&model.ModulePermission{},
		&model.Role{},
		&model.RoleModulePermission{},
		&model.User{},
		&model.UserRole{},
		&model.Client{},
		&model.Project{},
		&model.Quotation{},
		&model.Audit{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
