package service

import (
	"context"
	"errors"
	"unicode"

	"atelier/internal/model"
	"atelier/internal/repository"
	"atelier/pkg/apperr"
	"atelier/pkg/logger"

	"gorm.io/gorm"
)

// --- DTOs ---

type CreateClientRequest struct {
	Name       string `json:"name" binding:"required"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	RucDni     string `json:"ruc_dni" binding:"required"`
	Province   string `json:"province"`
	Department string `json:"department"`
}

type UpdateClientRequest struct {
	Name       *string `json:"name"`
	Address    *string `json:"address"`
	Phone      *string `json:"phone"`
	RucDni     *string `json:"ruc_dni"`
	Province   *string `json:"province"`
	Department *string `json:"department"`
}

type ClientResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	RucDni     string `json:"ruc_dni"`
	Province   string `json:"province"`
	Department string `json:"department"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// --- Interface ---

type ClientService interface {
	Create(ctx context.Context, req CreateClientRequest, actor Actor) (*ClientResponse, error)
	FindAll(ctx context.Context, actor Actor) ([]ClientResponse, error)
	FindOne(ctx context.Context, id string) (*ClientResponse, error)
	Update(ctx context.Context, id string, req UpdateClientRequest, actor Actor) (*ClientResponse, error)
	RemoveAll(ctx context.Context, ids []string, actor Actor) error
	ReactivateAll(ctx context.Context, ids []string, actor Actor) error
}

type clientService struct {
	clientRepo repository.ClientRepository
	audit      AuditService
	tx         repository.TransactionManager
	log        *logger.Logger
}

func NewClientService(
	clientRepo repository.ClientRepository,
	audit AuditService,
	tx repository.TransactionManager,
	log *logger.Logger,
) ClientService {
	return &clientService{clientRepo: clientRepo, audit: audit, tx: tx, log: log}
}

// --- Implementation ---

func (s *clientService) Create(ctx context.Context, req CreateClientRequest, actor Actor) (*ClientResponse, error) {
	if err := validateRucDni(req.RucDni); err != nil {
		return nil, err
	}

	holders, err := s.clientRepo.FindByRucDni(ctx, req.RucDni)
	if err != nil {
		return nil, s.internal(err, "failed to check tax id")
	}
	for _, holder := range holders {
		if holder.IsActive {
			return nil, apperr.BadRequest(taxIDInUseMessage(req.RucDni))
		}
	}

	client := &model.Client{
		Name:       req.Name,
		Address:    req.Address,
		Phone:      req.Phone,
		RucDni:     req.RucDni,
		Province:   req.Province,
		Department: req.Department,
		IsActive:   true,
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, s.internal(err, "failed to create client")
	}

	// The record and its audit entry must land together. If the audit write
	// fails after the insert already committed, the insert is undone.
	if err := s.audit.Record(ctx, client.ID, model.EntityClient, model.ActionCreate, actor.ID); err != nil {
		if delErr := s.clientRepo.HardDelete(ctx, client.ID); delErr != nil {
			s.log.Error().Err(delErr).
				Str("client_id", client.ID.String()).
				Msg("failed to roll back client after audit failure")
		}
		return nil, s.internal(err, "failed to record client creation")
	}

	resp := toClientResponse(*client)
	return &resp, nil
}

func (s *clientService) FindAll(ctx context.Context, actor Actor) ([]ClientResponse, error) {
	clients, err := s.clientRepo.List(ctx, !actor.IsSuperAdmin)
	if err != nil {
		return nil, s.internal(err, "failed to list clients")
	}

	res := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		res = append(res, toClientResponse(c))
	}
	return res, nil
}

func (s *clientService) FindOne(ctx context.Context, id string) (*ClientResponse, error) {
	clientID, err := parseID(id, "client")
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
		return nil, apperr.BadRequest("client is inactive")
	}

	resp := toClientResponse(*client)
	return &resp, nil
}

func (s *clientService) Update(ctx context.Context, id string, req UpdateClientRequest, actor Actor) (*ClientResponse, error) {
	clientID, err := parseID(id, "client")
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

	changes := map[string]interface{}{}
	if req.Name != nil && *req.Name != client.Name {
		changes["name"] = *req.Name
	}
	if req.Address != nil && *req.Address != client.Address {
		changes["address"] = *req.Address
	}
	if req.Phone != nil && *req.Phone != client.Phone {
		changes["phone"] = *req.Phone
	}
	if req.Province != nil && *req.Province != client.Province {
		changes["province"] = *req.Province
	}
	if req.Department != nil && *req.Department != client.Department {
		changes["department"] = *req.Department
	}
	if req.RucDni != nil && *req.RucDni != client.RucDni {
		if err := validateRucDni(*req.RucDni); err != nil {
			return nil, err
		}
		holders, err := s.clientRepo.FindByRucDni(ctx, *req.RucDni)
		if err != nil {
			return nil, s.internal(err, "failed to check tax id")
		}
		for _, holder := range holders {
			if holder.ID == client.ID {
				continue
			}
			if holder.IsActive {
				return nil, apperr.BadRequest(taxIDInUseMessage(*req.RucDni))
			}
			return nil, apperr.BadRequest("an inactive client already holds this tax id, contact a superadmin to reactivate it")
		}
		changes["ruc_dni"] = *req.RucDni
	}

	// Nothing actually changed: skip the write and the audit entry.
	if len(changes) == 0 {
		resp := toClientResponse(*client)
		return &resp, nil
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.clientRepo.UpdateFields(txCtx, client.ID, changes); err != nil {
			return err
		}
		return s.audit.Record(txCtx, client.ID, model.EntityClient, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to update client")
	}

	updated, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, s.internal(err, "failed to fetch updated client")
	}
	resp := toClientResponse(*updated)
	return &resp, nil
}

func (s *clientService) RemoveAll(ctx context.Context, ids []string, actor Actor) error {
	return s.setActiveAll(ctx, ids, actor, false)
}

func (s *clientService) ReactivateAll(ctx context.Context, ids []string, actor Actor) error {
	return s.setActiveAll(ctx, ids, actor, true)
}

func (s *clientService) setActiveAll(ctx context.Context, ids []string, actor Actor, active bool) error {
	clientIDs, err := parseIDs(ids, "client")
	if err != nil {
		return err
	}

	clients, err := s.clientRepo.FindByIDs(ctx, clientIDs)
	if err != nil {
		return s.internal(err, "failed to fetch clients")
	}
	if len(clients) == 0 {
		return apperr.NotFound("no clients found for the given ids")
	}

	action := model.ActionDelete
	if active {
		action = model.ActionUpdate
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, client := range clients {
			if err := s.clientRepo.SetActive(txCtx, client.ID, active); err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, client.ID, model.EntityClient, action, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to update clients")
	}
	return nil
}

// --- Helpers ---

// validateRucDni accepts an 8 digit DNI or an 11 digit RUC, digits only.
func validateRucDni(value string) error {
	if len(value) != model.DNILength && len(value) != model.RUCLength {
		return apperr.BadRequest("ruc_dni must be 8 digits (DNI) or 11 digits (RUC)")
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return apperr.BadRequest("ruc_dni must contain only digits")
		}
	}
	return nil
}

func taxIDInUseMessage(value string) string {
	if len(value) == model.DNILength {
		return "This DNI is already in use"
	}
	return "This RUC is already in use"
}

func (s *clientService) internal(err error, msg string) error {
	if kindErr, ok := apperr.As(err); ok && kindErr.Kind != apperr.KindInternal {
		return err
	}
	s.log.Error().Err(err).Msg(msg)
	if kindErr, ok := apperr.As(err); ok {
		return kindErr
	}
	return apperr.Internal(err)
}

func toClientResponse(c model.Client) ClientResponse {
	return ClientResponse{
		ID:         c.ID.String(),
		Name:       c.Name,
		Address:    c.Address,
		Phone:      c.Phone,
		RucDni:     c.RucDni,
		Province:   c.Province,
		Department: c.Department,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt.Format(timeLayout),
		UpdatedAt:  c.UpdatedAt.Format(timeLayout),
	}
}
