package repository

import (
	"context"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository provides access to the static Module × Permission catalog.
type CatalogRepository interface {
	ListModulePermissions(ctx context.Context) ([]model.ModulePermission, error)
	FindModulePermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ModulePermission, error)
	FindOrCreateModule(ctx context.Context, mod *model.Module) error
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error
	FindOrCreateModulePermission(ctx context.Context, mp *model.ModulePermission) error
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListModulePermissions(ctx context.Context) ([]model.ModulePermission, error) {
	var grants []model.ModulePermission
	err := GetDB(ctx, r.db).
		Preload("Module").
		Preload("Permission").
		Joins("JOIN modules ON modules.id = module_permissions.module_id").
		Order("modules.code asc").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *catalogRepository) FindModulePermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ModulePermission, error) {
	var grants []model.ModulePermission
	err := GetDB(ctx, r.db).
		Preload("Module").
		Preload("Permission").
		Where("id IN ?", ids).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *catalogRepository) FindOrCreateModule(ctx context.Context, mod *model.Module) error {
	return GetDB(ctx, r.db).Where("code = ?", mod.Code).FirstOrCreate(mod).Error
}

func (r *catalogRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Where("code = ?", perm.Code).FirstOrCreate(perm).Error
}

func (r *catalogRepository) FindOrCreateModulePermission(ctx context.Context, mp *model.ModulePermission) error {
	return GetDB(ctx, r.db).
		Where("module_id = ? AND permission_id = ?", mp.ModuleID, mp.PermissionID).
		FirstOrCreate(mp).Error
}
