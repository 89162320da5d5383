package repository

import (
	"context"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleRepository defines data access for Role entities and their grant links.
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Save(ctx context.Context, role *model.Role) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error)
	FindActiveByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context, onlyActive bool) ([]model.Role, error)
	ReplaceGrants(ctx context.Context, roleID uuid.UUID, grantIDs []uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	CountUsersWithRole(ctx context.Context, roleID uuid.UUID, onlyActiveUsers bool) (int64, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// grantPreloads loads the full grant chain for response shaping.
func grantPreloads(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Permissions.ModulePermission.Module").
		Preload("Permissions.ModulePermission.Permission")
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Save(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Save(role).Error
}

func (r *roleRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", id).Delete(&model.RoleModulePermission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := grantPreloads(GetDB(ctx, r.db)).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	if err := grantPreloads(GetDB(ctx, r.db)).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) FindActiveByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	err := GetDB(ctx, r.db).Where("name = ? AND is_active = ?", name, true).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, onlyActive bool) ([]model.Role, error) {
	var roles []model.Role
	q := grantPreloads(GetDB(ctx, r.db)).Order("created_at asc")
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ReplaceGrants swaps the whole grant-link set: delete-all then insert-new,
// not a diff.
func (r *roleRepository) ReplaceGrants(ctx context.Context, roleID uuid.UUID, grantIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", roleID).Delete(&model.RoleModulePermission{}).Error; err != nil {
		return err
	}
	if len(grantIDs) == 0 {
		return nil
	}
	links := make([]model.RoleModulePermission, 0, len(grantIDs))
	for _, gid := range grantIDs {
		links = append(links, model.RoleModulePermission{
			RoleID:             roleID,
			ModulePermissionID: gid,
			IsActive:           true,
		})
	}
	return db.Create(&links).Error
}

func (r *roleRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Role{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
		return err
	}
	return db.Model(&model.RoleModulePermission{}).
		Where("role_id = ?", id).
		Update("is_active", active).Error
}

func (r *roleRepository) CountUsersWithRole(ctx context.Context, roleID uuid.UUID, onlyActiveUsers bool) (int64, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.UserRole{}).
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("user_roles.role_id = ?", roleID)
	if onlyActiveUsers {
		q = q.Where("users.is_active = ? AND user_roles.is_active = ?", true, true)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
