package service

import (
	"context"
	"encoding/json"

	"atelier/internal/model"
	"atelier/internal/repository"
	"atelier/internal/websocket"
	"atelier/pkg/apperr"
	"atelier/pkg/logger"

	"github.com/google/uuid"
)

type AuditResponse struct {
	ID            string `json:"id"`
	EntityID      string `json:"entity_id"`
	EntityType    string `json:"entity_type"`
	Action        string `json:"action"`
	PerformedByID string `json:"performed_by_id"`
	PerformedBy   string `json:"performed_by"`
	CreatedAt     string `json:"created_at"`
}

// AuditService records mutations and answers history questions for the other
// services. Record joins the caller's transaction through the context.
type AuditService interface {
	Record(ctx context.Context, entityID uuid.UUID, entityType, action string, performedBy uuid.UUID) error
	HasActions(ctx context.Context, userID uuid.UUID) (bool, error)
	List(ctx context.Context, page, limit int) ([]AuditResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	hub  *websocket.Hub
	log  *logger.Logger
}

// NewAuditService creates the audit recorder. hub may be nil when no live
// activity feed is wired (e.g. in tests).
func NewAuditService(repo repository.AuditRepository, hub *websocket.Hub, log *logger.Logger) AuditService {
	return &auditService{repo: repo, hub: hub, log: log}
}

func (s *auditService) Record(ctx context.Context, entityID uuid.UUID, entityType, action string, performedBy uuid.UUID) error {
	entry := &model.Audit{
		EntityID:      entityID,
		EntityType:    entityType,
		Action:        action,
		PerformedByID: performedBy,
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return err
	}

	// Best-effort live feed; the business outcome never depends on it.
	if s.hub != nil {
		if payload, err := json.Marshal(entry); err == nil {
			s.hub.Publish(payload)
		}
	}
	return nil
}

func (s *auditService) HasActions(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := s.repo.CountByPerformer(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *auditService) List(ctx context.Context, page, limit int) ([]AuditResponse, int64, error) {
	entries, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list audit records")
		return nil, 0, apperr.Internal(err)
	}

	res := make([]AuditResponse, 0, len(entries))
	for _, e := range entries {
		performedBy := ""
		if e.PerformedBy != nil {
			performedBy = e.PerformedBy.Name
		}
		res = append(res, AuditResponse{
			ID:            e.ID.String(),
			EntityID:      e.EntityID.String(),
			EntityType:    e.EntityType,
			Action:        e.Action,
			PerformedByID: e.PerformedByID.String(),
			PerformedBy:   performedBy,
			CreatedAt:     e.CreatedAt.Format(timeLayout),
		})
	}
	return res, total, nil
}
