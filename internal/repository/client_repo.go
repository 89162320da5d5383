package repository

import (
	"context"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientRepository defines data access for Client entities.
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Client, error)
	FindByRucDni(ctx context.Context, rucDni string) ([]model.Client, error)
	List(ctx context.Context, onlyActive bool) ([]model.Client, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Create(client).Error
}

func (r *clientRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Client, error) {
	var clients []model.Client
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// FindByRucDni returns every client holding the tax id regardless of state;
// the active-uniqueness rule lives in the service layer.
func (r *clientRepository) FindByRucDni(ctx context.Context, rucDni string) ([]model.Client, error) {
	var clients []model.Client
	if err := GetDB(ctx, r.db).Where("ruc_dni = ?", rucDni).Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *clientRepository) List(ctx context.Context, onlyActive bool) ([]model.Client, error) {
	var clients []model.Client
	q := GetDB(ctx, r.db).Order("created_at asc")
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *clientRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.Client{}).Where("id = ?", id).Updates(fields).Error
}

func (r *clientRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Client{}).Error
}

func (r *clientRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return GetDB(ctx, r.db).Model(&model.Client{}).Where("id = ?", id).Update("is_active", active).Error
}
