package repository

import (
	"context"
	"time"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines data access for User entities and their role links.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) ([]model.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	List(ctx context.Context, onlyActive bool) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateUserRoles(ctx context.Context, links []model.UserRole) error
	DeleteUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	DeleteAllUserRoles(ctx context.Context, userID uuid.UUID) error
	SetUserRolesActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Roles.Role").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns every user holding the email, active or not. Uniqueness
// is enforced per active state in the service layer.
func (r *userRepository) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Preload("Roles.Role").Where("email = ?", email).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Preload("Roles.Role").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, onlyActive bool) ([]model.User, error) {
	var users []model.User
	q := GetDB(ctx, r.db).Preload("Roles.Role").Order("created_at asc")
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Roles").Save(user).Error
}

func (r *userRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("last_login", at).Error
}

func (r *userRepository) CreateUserRoles(ctx context.Context, links []model.UserRole) error {
	if len(links) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&links).Error
}

func (r *userRepository) DeleteUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if len(roleIDs) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).
		Where("user_id = ? AND role_id IN ?", userID, roleIDs).
		Delete(&model.UserRole{}).Error
}

func (r *userRepository) DeleteAllUserRoles(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.UserRole{}).Error
}

func (r *userRepository) SetUserRolesActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return GetDB(ctx, r.db).Model(&model.UserRole{}).
		Where("user_id = ?", userID).
		Update("is_active", active).Error
}
