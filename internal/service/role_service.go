package service

import (
	"context"
	"errors"
	"sort"

	"atelier/internal/model"
	"atelier/internal/repository"
	"atelier/pkg/apperr"
	"atelier/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	GrantIDs    []string `json:"grant_ids"` // ModulePermission UUIDs
}

type UpdateRoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	GrantIDs    *[]string `json:"grant_ids"` // full replacement when present
}

type GrantResponse struct {
	ID   string `json:"id"` // ModulePermission id
	Code string `json:"code"`
	Name string `json:"name"`
}

type ModuleGrantsResponse struct {
	ModuleID    string          `json:"module_id"`
	ModuleCode  string          `json:"module_code"`
	ModuleName  string          `json:"module_name"`
	Permissions []GrantResponse `json:"permissions"`
}

type RoleResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	IsActive    bool                   `json:"is_active"`
	Modules     []ModuleGrantsResponse `json:"modules"`
	CreatedAt   string                 `json:"created_at"`
}

// --- Interface ---

type RoleService interface {
	Create(ctx context.Context, req CreateRoleRequest, actor Actor) (*RoleResponse, error)
	Update(ctx context.Context, id string, req UpdateRoleRequest, actor Actor) (*RoleResponse, error)
	Remove(ctx context.Context, id string, actor Actor) (string, error)
	RemoveAll(ctx context.Context, ids []string, actor Actor) error
	ReactivateAll(ctx context.Context, ids []string, actor Actor) error
	FindAll(ctx context.Context, actor Actor) ([]RoleResponse, error)
	FindByID(ctx context.Context, id string) (*RoleResponse, error)
	ListModulePermissions(ctx context.Context) ([]ModuleGrantsResponse, error)
	IsSuperAdminRole(ctx context.Context, id uuid.UUID) (bool, error)
	FindByName(ctx context.Context, name string) (*RoleResponse, error)
	SeedDefaults(ctx context.Context) error
}

type roleService struct {
	roleRepo    repository.RoleRepository
	catalogRepo repository.CatalogRepository
	audit       AuditService
	tx          repository.TransactionManager
	log         *logger.Logger
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	catalogRepo repository.CatalogRepository,
	audit AuditService,
	tx repository.TransactionManager,
	log *logger.Logger,
) RoleService {
	return &roleService{roleRepo: roleRepo, catalogRepo: catalogRepo, audit: audit, tx: tx, log: log}
}

// --- Implementation ---

func (s *roleService) Create(ctx context.Context, req CreateRoleRequest, actor Actor) (*RoleResponse, error) {
	if req.Name == model.SuperAdminRoleName {
		return nil, apperr.BadRequest("role name is reserved")
	}

	if _, err := s.roleRepo.FindActiveByName(ctx, req.Name); err == nil {
		return nil, apperr.Conflict("a role with that name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.internal(err, "failed to check role name")
	}

	grantIDs, err := parseIDs(req.GrantIDs, "grant")
	if err != nil {
		return nil, err
	}
	if err := s.validateGrantsExist(ctx, grantIDs); err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	for _, gid := range grantIDs {
		role.Permissions = append(role.Permissions, model.RoleModulePermission{
			ModulePermissionID: gid,
			IsActive:           true,
		})
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Create(txCtx, role); err != nil {
			return err
		}
		return s.audit.Record(txCtx, role.ID, model.EntityRole, model.ActionCreate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to create role")
	}

	return s.FindByID(ctx, role.ID.String())
}

func (s *roleService) Update(ctx context.Context, id string, req UpdateRoleRequest, actor Actor) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role not found")
		}
		return nil, s.internal(err, "failed to fetch role")
	}

	if role.IsProtected() {
		return nil, apperr.BadRequest("the superadmin role cannot be modified")
	}
	if req.Name == nil && req.Description == nil && req.GrantIDs == nil {
		return nil, apperr.BadRequest("no data to update")
	}

	if req.Name != nil {
		if *req.Name == model.SuperAdminRoleName {
			return nil, apperr.BadRequest("role name is reserved")
		}
		if *req.Name != role.Name {
			if other, err := s.roleRepo.FindActiveByName(ctx, *req.Name); err == nil && other.ID != role.ID {
				return nil, apperr.Conflict("a role with that name already exists")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, s.internal(err, "failed to check role name")
			}
		}
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}

	var grantIDs []uuid.UUID
	if req.GrantIDs != nil {
		grantIDs, err = parseIDs(*req.GrantIDs, "grant")
		if err != nil {
			return nil, err
		}
		if err := s.validateGrantsExist(ctx, grantIDs); err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Save(txCtx, role); err != nil {
			return err
		}
		if req.GrantIDs != nil {
			if err := s.roleRepo.ReplaceGrants(txCtx, role.ID, grantIDs); err != nil {
				return err
			}
		}
		return s.audit.Record(txCtx, role.ID, model.EntityRole, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to update role")
	}

	return s.FindByID(ctx, id)
}

func (s *roleService) Remove(ctx context.Context, id string, actor Actor) (string, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return "", err
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("role not found")
		}
		return "", s.internal(err, "failed to fetch role")
	}

	if role.IsProtected() {
		return "", apperr.BadRequest("the superadmin role cannot be deleted")
	}

	inUseByActive, err := s.isInUseByActiveUser(ctx, role.ID)
	if err != nil {
		return "", s.internal(err, "failed to check role usage")
	}
	if inUseByActive {
		return "", apperr.BadRequest("role is in use by active users")
	}

	usedByInactive, err := s.isInUseOnlyByInactiveUsers(ctx, role.ID)
	if err != nil {
		return "", s.internal(err, "failed to check role usage")
	}

	message := "role deleted"
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if usedByInactive {
			// Inactive users still reference the role: keep the row so their
			// assignments stay resolvable.
			message = "role deactivated"
			if err := s.roleRepo.SetActive(txCtx, role.ID, false); err != nil {
				return err
			}
		} else {
			if err := s.roleRepo.HardDelete(txCtx, role.ID); err != nil {
				return err
			}
		}
		return s.audit.Record(txCtx, role.ID, model.EntityRole, model.ActionDelete, actor.ID)
	})
	if err != nil {
		return "", s.internal(err, "failed to remove role")
	}

	return message, nil
}

func (s *roleService) RemoveAll(ctx context.Context, ids []string, actor Actor) error {
	roleIDs, err := parseIDs(ids, "role")
	if err != nil {
		return err
	}

	roles, err := s.roleRepo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return s.internal(err, "failed to fetch roles")
	}
	if len(roles) == 0 {
		return apperr.NotFound("no roles found for the given ids")
	}

	// Validate the whole selection before touching any row.
	for _, role := range roles {
		if role.IsProtected() {
			return apperr.BadRequest("the superadmin role cannot be deleted")
		}
		inUse, err := s.isInUseByActiveUser(ctx, role.ID)
		if err != nil {
			return s.internal(err, "failed to check role usage")
		}
		if inUse {
			return apperr.BadRequest("role '" + role.Name + "' is in use by active users")
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, role := range roles {
			usedByInactive, err := s.isInUseOnlyByInactiveUsers(txCtx, role.ID)
			if err != nil {
				return err
			}
			if usedByInactive {
				if err := s.roleRepo.SetActive(txCtx, role.ID, false); err != nil {
					return err
				}
			} else {
				if err := s.roleRepo.HardDelete(txCtx, role.ID); err != nil {
					return err
				}
			}
			if err := s.audit.Record(txCtx, role.ID, model.EntityRole, model.ActionDelete, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to remove roles")
	}
	return nil
}

func (s *roleService) ReactivateAll(ctx context.Context, ids []string, actor Actor) error {
	roleIDs, err := parseIDs(ids, "role")
	if err != nil {
		return err
	}

	roles, err := s.roleRepo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return s.internal(err, "failed to fetch roles")
	}
	if len(roles) == 0 {
		return apperr.NotFound("no roles found for the given ids")
	}
	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		if role.IsProtected() {
			return apperr.BadRequest("the superadmin role cannot be reactivated")
		}
		// The name may have been reused by a newer role while this one was
		// inactive; reactivating would leave two active roles with one name.
		if seen[role.Name] {
			return apperr.Conflict("an active role already holds the name " + role.Name)
		}
		seen[role.Name] = true
		if other, err := s.roleRepo.FindActiveByName(ctx, role.Name); err == nil && other.ID != role.ID {
			return apperr.Conflict("an active role already holds the name " + role.Name)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return s.internal(err, "failed to check role name")
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, role := range roles {
			if err := s.roleRepo.SetActive(txCtx, role.ID, true); err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, role.ID, model.EntityRole, model.ActionUpdate, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to reactivate roles")
	}
	return nil
}

func (s *roleService) FindAll(ctx context.Context, actor Actor) ([]RoleResponse, error) {
	roles, err := s.roleRepo.List(ctx, !actor.IsSuperAdmin)
	if err != nil {
		return nil, s.internal(err, "failed to list roles")
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		// The superadmin role never shows up in listings, not even for
		// superadmins.
		if role.IsProtected() {
			continue
		}
		res = append(res, toRoleResponse(role))
	}
	return res, nil
}

func (s *roleService) FindByID(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role not found")
		}
		return nil, s.internal(err, "failed to fetch role")
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) ListModulePermissions(ctx context.Context) ([]ModuleGrantsResponse, error) {
	grants, err := s.catalogRepo.ListModulePermissions(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to list module permissions")
	}

	tuples := make([]grantTuple, 0, len(grants))
	for _, mp := range grants {
		tuples = append(tuples, grantTuple{module: mp.Module, permission: mp.Permission, grantID: mp.ID})
	}
	return groupGrantsByModule(tuples), nil
}

func (s *roleService) IsSuperAdminRole(ctx context.Context, id uuid.UUID) (bool, error) {
	role, err := s.roleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return role.IsProtected(), nil
}

func (s *roleService) FindByName(ctx context.Context, name string) (*RoleResponse, error) {
	role, err := s.roleRepo.FindActiveByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role not found")
		}
		return nil, s.internal(err, "failed to fetch role")
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

// --- Usage helpers ---

func (s *roleService) isInUseByActiveUser(ctx context.Context, roleID uuid.UUID) (bool, error) {
	count, err := s.roleRepo.CountUsersWithRole(ctx, roleID, true)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *roleService) isInUseOnlyByInactiveUsers(ctx context.Context, roleID uuid.UUID) (bool, error) {
	active, err := s.roleRepo.CountUsersWithRole(ctx, roleID, true)
	if err != nil {
		return false, err
	}
	if active > 0 {
		return false, nil
	}
	total, err := s.roleRepo.CountUsersWithRole(ctx, roleID, false)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *roleService) validateGrantsExist(ctx context.Context, grantIDs []uuid.UUID) error {
	if len(grantIDs) == 0 {
		return nil
	}
	grants, err := s.catalogRepo.FindModulePermissionsByIDs(ctx, grantIDs)
	if err != nil {
		return s.internal(err, "failed to fetch module permissions")
	}
	if len(grants) != len(grantIDs) {
		return apperr.BadRequest("one or more grant ids do not exist")
	}
	return nil
}

func (s *roleService) internal(err error, msg string) error {
	if kindErr, ok := apperr.As(err); ok && kindErr.Kind != apperr.KindInternal {
		return err
	}
	s.log.Error().Err(err).Msg(msg)
	if kindErr, ok := apperr.As(err); ok {
		return kindErr
	}
	return apperr.Internal(err)
}

// --- Grouping ---

// grantTuple is the flat (module, permission, grant) row the grouping fold
// consumes, independent of how the store shaped the query.
type grantTuple struct {
	module     model.Module
	permission model.Permission
	grantID    uuid.UUID
}

// groupGrantsByModule folds flat grant rows into an ordered per-module
// grouping. Modules are ordered by code, permissions by code within each
// module.
func groupGrantsByModule(tuples []grantTuple) []ModuleGrantsResponse {
	byModule := make(map[uuid.UUID]*ModuleGrantsResponse)
	order := make([]uuid.UUID, 0)

	for _, t := range tuples {
		group, ok := byModule[t.module.ID]
		if !ok {
			group = &ModuleGrantsResponse{
				ModuleID:   t.module.ID.String(),
				ModuleCode: t.module.Code,
				ModuleName: t.module.Name,
			}
			byModule[t.module.ID] = group
			order = append(order, t.module.ID)
		}
		group.Permissions = append(group.Permissions, GrantResponse{
			ID:   t.grantID.String(),
			Code: t.permission.Code,
			Name: t.permission.Name,
		})
	}

	res := make([]ModuleGrantsResponse, 0, len(order))
	for _, moduleID := range order {
		group := byModule[moduleID]
		sort.Slice(group.Permissions, func(i, j int) bool {
			return group.Permissions[i].Code < group.Permissions[j].Code
		})
		res = append(res, *group)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ModuleCode < res[j].ModuleCode
	})
	return res
}

func toRoleResponse(r model.Role) RoleResponse {
	tuples := make([]grantTuple, 0, len(r.Permissions))
	for _, link := range r.Permissions {
		tuples = append(tuples, grantTuple{
			module:     link.ModulePermission.Module,
			permission: link.ModulePermission.Permission,
			grantID:    link.ModulePermissionID,
		})
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Modules:     groupGrantsByModule(tuples),
		CreatedAt:   r.CreatedAt.Format(timeLayout),
	}
}
