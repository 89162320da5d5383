package repository

import (
	"context"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository appends and reads immutable audit records.
type AuditRepository interface {
	Log(ctx context.Context, entry *model.Audit) error
	CountByPerformer(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.Audit, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log joins the caller's transaction when one is in the context, so a rolled
// back mutation never leaves a stray audit row.
func (r *auditRepository) Log(ctx context.Context, entry *model.Audit) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) CountByPerformer(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Audit{}).
		Where("performed_by_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.Audit, int64, error) {
	var entries []model.Audit
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Audit{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Preload("PerformedBy").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
