package service

import (
	"context"
	"errors"
	"strings"

	"atelier/internal/model"
	"atelier/internal/repository"
	"atelier/pkg/apperr"
	"atelier/pkg/logger"
	"atelier/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ClientID    string `json:"client_id" binding:"required"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type CreateQuotationRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type UpdateQuotationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	Status      string `json:"status"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type QuotationResponse struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	ProjectID string          `json:"project_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

// --- Interface ---

type ProjectService interface {
	Create(ctx context.Context, req CreateProjectRequest, actor Actor) (*ProjectResponse, error)
	FindAll(ctx context.Context, params pagination.Params, actor Actor) (*ProjectListResponse, error)
	FindOne(ctx context.Context, id string) (*ProjectResponse, error)
	Update(ctx context.Context, id string, req UpdateProjectRequest, actor Actor) (*ProjectResponse, error)
	RemoveAll(ctx context.Context, ids []string, actor Actor) error
	ReactivateAll(ctx context.Context, ids []string, actor Actor) error

	CreateQuotation(ctx context.Context, projectID string, req CreateQuotationRequest, actor Actor) (*QuotationResponse, error)
	ListQuotations(ctx context.Context, projectID string) ([]QuotationResponse, error)
	UpdateQuotationStatus(ctx context.Context, id string, req UpdateQuotationStatusRequest, actor Actor) (*QuotationResponse, error)
	RemoveQuotation(ctx context.Context, id string, actor Actor) error
}

type projectService struct {
	projectRepo repository.ProjectRepository
	clientRepo  repository.ClientRepository
	audit       AuditService
	tx          repository.TransactionManager
	log         *logger.Logger
}

func NewProjectService(
	projectRepo repository.ProjectRepository,
	clientRepo repository.ClientRepository,
	audit AuditService,
	tx repository.TransactionManager,
	log *logger.Logger,
) ProjectService {
	return &projectService{projectRepo: projectRepo, clientRepo: clientRepo, audit: audit, tx: tx, log: log}
}

// --- Implementation ---

func (s *projectService) Create(ctx context.Context, req CreateProjectRequest, actor Actor) (*ProjectResponse, error) {
	clientID, err := parseID(req.ClientID, "client")
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.BadRequest("client not found")
		}
		return nil, s.internal(err, "failed to fetch client")
	}
	if !client.IsActive {
		return nil, apperr.BadRequest("cannot create a project for an inactive client")
	}

	project := &model.Project{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    client.ID,
		Status:      model.ProjectStatusDraft,
		IsActive:    true,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.Create(txCtx, project); err != nil {
			return err
		}
		return s.audit.Record(txCtx, project.ID, model.EntityProject, model.ActionCreate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to create project")
	}

	project.Client = *client
	resp := toProjectResponse(*project)
	return &resp, nil
}

func (s *projectService) FindAll(ctx context.Context, params pagination.Params, actor Actor) (*ProjectListResponse, error) {
	projects, total, err := s.projectRepo.List(ctx, !actor.IsSuperAdmin, params.Page, params.Limit)
	if err != nil {
		return nil, s.internal(err, "failed to list projects")
	}

	res := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		res = append(res, toProjectResponse(p))
	}
	return &ProjectListResponse{Projects: res, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

func (s *projectService) FindOne(ctx context.Context, id string) (*ProjectResponse, error) {
	project, err := s.fetchProject(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toProjectResponse(*project)
	return &resp, nil
}

func (s *projectService) Update(ctx context.Context, id string, req UpdateProjectRequest, actor Actor) (*ProjectResponse, error) {
	project, err := s.fetchProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		status := strings.ToUpper(*req.Status)
		switch status {
		case model.ProjectStatusDraft, model.ProjectStatusInProgress, model.ProjectStatusDone:
			project.Status = status
		default:
			return nil, apperr.BadRequest("invalid project status")
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.Save(txCtx, project); err != nil {
			return err
		}
		return s.audit.Record(txCtx, project.ID, model.EntityProject, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to update project")
	}

	resp := toProjectResponse(*project)
	return &resp, nil
}

func (s *projectService) RemoveAll(ctx context.Context, ids []string, actor Actor) error {
	return s.setActiveAll(ctx, ids, actor, false)
}

func (s *projectService) ReactivateAll(ctx context.Context, ids []string, actor Actor) error {
	return s.setActiveAll(ctx, ids, actor, true)
}

func (s *projectService) setActiveAll(ctx context.Context, ids []string, actor Actor, active bool) error {
	projectIDs, err := parseIDs(ids, "project")
	if err != nil {
		return err
	}

	projects, err := s.projectRepo.FindByIDs(ctx, projectIDs)
	if err != nil {
		return s.internal(err, "failed to fetch projects")
	}
	if len(projects) == 0 {
		return apperr.NotFound("no projects found for the given ids")
	}

	action := model.ActionDelete
	if active {
		action = model.ActionUpdate
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, project := range projects {
			if err := s.projectRepo.SetActive(txCtx, project.ID, active); err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, project.ID, model.EntityProject, action, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to update projects")
	}
	return nil
}

func (s *projectService) CreateQuotation(ctx context.Context, projectID string, req CreateQuotationRequest, actor Actor) (*QuotationResponse, error) {
	project, err := s.fetchProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, apperr.BadRequest("cannot quote an inactive project")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.BadRequest("amount must be greater than zero")
	}

	quotation := &model.Quotation{
		Code:      newQuotationCode(),
		ProjectID: project.ID,
		Amount:    req.Amount,
		Status:    model.QuotationStatusPending,
		IsActive:  true,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.CreateQuotation(txCtx, quotation); err != nil {
			return err
		}
		return s.audit.Record(txCtx, quotation.ID, model.EntityQuotation, model.ActionCreate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to create quotation")
	}

	resp := toQuotationResponse(*quotation)
	return &resp, nil
}

func (s *projectService) ListQuotations(ctx context.Context, projectID string) ([]QuotationResponse, error) {
	project, err := s.fetchProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	quotations, err := s.projectRepo.ListQuotationsByProject(ctx, project.ID)
	if err != nil {
		return nil, s.internal(err, "failed to list quotations")
	}

	res := make([]QuotationResponse, 0, len(quotations))
	for _, q := range quotations {
		if !q.IsActive {
			continue
		}
		res = append(res, toQuotationResponse(q))
	}
	return res, nil
}

func (s *projectService) UpdateQuotationStatus(ctx context.Context, id string, req UpdateQuotationStatusRequest, actor Actor) (*QuotationResponse, error) {
	quotationID, err := parseID(id, "quotation")
	if err != nil {
		return nil, err
	}

	quotation, err := s.projectRepo.FindQuotationByID(ctx, quotationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("quotation not found")
		}
		return nil, s.internal(err, "failed to fetch quotation")
	}

	status := strings.ToUpper(req.Status)
	switch status {
	case model.QuotationStatusPending, model.QuotationStatusApproved, model.QuotationStatusRejected:
	default:
		return nil, apperr.BadRequest("invalid quotation status")
	}
	if quotation.Status != model.QuotationStatusPending && status != quotation.Status {
		return nil, apperr.BadRequest("only pending quotations can change status")
	}
	quotation.Status = status

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.SaveQuotation(txCtx, quotation); err != nil {
			return err
		}
		return s.audit.Record(txCtx, quotation.ID, model.EntityQuotation, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to update quotation")
	}

	resp := toQuotationResponse(*quotation)
	return &resp, nil
}

func (s *projectService) RemoveQuotation(ctx context.Context, id string, actor Actor) error {
	quotationID, err := parseID(id, "quotation")
	if err != nil {
		return err
	}

	quotation, err := s.projectRepo.FindQuotationByID(ctx, quotationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("quotation not found")
		}
		return s.internal(err, "failed to fetch quotation")
	}
	if !quotation.IsActive {
		return apperr.BadRequest("quotation is already removed")
	}
	quotation.IsActive = false

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.SaveQuotation(txCtx, quotation); err != nil {
			return err
		}
		return s.audit.Record(txCtx, quotation.ID, model.EntityQuotation, model.ActionDelete, actor.ID)
	})
	if err != nil {
		return s.internal(err, "failed to remove quotation")
	}
	return nil
}

// --- Helpers ---

func (s *projectService) fetchProject(ctx context.Context, id string) (*model.Project, error) {
	projectID, err := parseID(id, "project")
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, s.internal(err, "failed to fetch project")
	}
	return project, nil
}

func (s *projectService) internal(err error, msg string) error {
	if kindErr, ok := apperr.As(err); ok && kindErr.Kind != apperr.KindInternal {
		return err
	}
	s.log.Error().Err(err).Msg(msg)
	if kindErr, ok := apperr.As(err); ok {
		return kindErr
	}
	return apperr.Internal(err)
}

// newQuotationCode returns a short human readable code like QT-3F2A9C01.
func newQuotationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "QT-" + strings.ToUpper(raw[:8])
}

func toProjectResponse(p model.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		ClientID:    p.ClientID.String(),
		ClientName:  p.Client.Name,
		Status:      p.Status,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.Format(timeLayout),
	}
}

func toQuotationResponse(q model.Quotation) QuotationResponse {
	return QuotationResponse{
		ID:        q.ID.String(),
		Code:      q.Code,
		ProjectID: q.ProjectID.String(),
		Amount:    q.Amount,
		Status:    q.Status,
		CreatedAt: q.CreatedAt.Format(timeLayout),
	}
}
