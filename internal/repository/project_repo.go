package repository

import (
	"context"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectRepository defines data access for projects and their quotations.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Project, error)
	List(ctx context.Context, onlyActive bool, page, limit int) ([]model.Project, int64, error)
	Save(ctx context.Context, project *model.Project) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateQuotation(ctx context.Context, q *model.Quotation) error
	FindQuotationByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	ListQuotationsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Quotation, error)
	SaveQuotation(ctx context.Context, q *model.Quotation) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Create(project).Error
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := GetDB(ctx, r.db).Preload("Client").First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) List(ctx context.Context, onlyActive bool, page, limit int) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Project{})
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Preload("Client").Order("created_at asc").Offset(offset).Limit(limit).Find(&projects).Error
	if err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *projectRepository) Save(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Omit("Client").Save(project).Error
}

func (r *projectRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return GetDB(ctx, r.db).Model(&model.Project{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *projectRepository) CreateQuotation(ctx context.Context, q *model.Quotation) error {
	return GetDB(ctx, r.db).Create(q).Error
}

func (r *projectRepository) FindQuotationByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	var quotation model.Quotation
	if err := GetDB(ctx, r.db).First(&quotation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quotation, nil
}

func (r *projectRepository) ListQuotationsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Quotation, error) {
	var quotations []model.Quotation
	err := GetDB(ctx, r.db).
		Where("project_id = ?", projectID).
		Order("created_at asc").
		Find(&quotations).Error
	if err != nil {
		return nil, err
	}
	return quotations, nil
}

func (r *projectRepository) SaveQuotation(ctx context.Context, q *model.Quotation) error {
	return GetDB(ctx, r.db).Save(q).Error
}
