package service

import (
	"context"
	"errors"

	"atelier/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Static Module × Permission catalog seeded at boot.
var seedModules = []model.Module{
	{Code: model.ModuleUsers, Name: "Users", Description: "User administration"},
	{Code: model.ModuleRoles, Name: "Roles", Description: "Role and permission administration"},
	{Code: model.ModuleClients, Name: "Clients", Description: "Client registry"},
	{Code: model.ModuleProjects, Name: "Projects", Description: "Design projects"},
	{Code: model.ModuleQuotations, Name: "Quotations", Description: "Project quotations"},
	{Code: model.ModuleAudit, Name: "Audit", Description: "Activity history"},
}

var seedPermissions = []model.Permission{
	{Code: model.PermCreate, Name: "Create", Description: "Create records"},
	{Code: model.PermRead, Name: "Read", Description: "Read records"},
	{Code: model.PermUpdate, Name: "Update", Description: "Update records"},
	{Code: model.PermDelete, Name: "Delete", Description: "Delete or deactivate records"},
}

// SeedDefaults upserts the static catalog, cross-joins it into
// ModulePermission grants and creates the SUPER_ADMIN role holding the full
// grant set. Safe to run on every boot.
func (s *roleService) SeedDefaults(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		modules := make([]model.Module, len(seedModules))
		copy(modules, seedModules)
		for i := range modules {
			if err := s.catalogRepo.FindOrCreateModule(txCtx, &modules[i]); err != nil {
				return err
			}
		}

		permissions := make([]model.Permission, len(seedPermissions))
		copy(permissions, seedPermissions)
		for i := range permissions {
			if err := s.catalogRepo.FindOrCreatePermission(txCtx, &permissions[i]); err != nil {
				return err
			}
		}

		grantIDs := make([]uuid.UUID, 0, len(modules)*len(permissions))
		for _, mod := range modules {
			for _, perm := range permissions {
				mp := model.ModulePermission{ModuleID: mod.ID, PermissionID: perm.ID}
				if err := s.catalogRepo.FindOrCreateModulePermission(txCtx, &mp); err != nil {
					return err
				}
				grantIDs = append(grantIDs, mp.ID)
			}
		}

		_, err := s.roleRepo.FindActiveByName(txCtx, model.SuperAdminRoleName)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		role := &model.Role{
			Name:        model.SuperAdminRoleName,
			Description: "Unrestricted system role, assigned only at bootstrap",
			IsActive:    true,
		}
		for _, gid := range grantIDs {
			role.Permissions = append(role.Permissions, model.RoleModulePermission{
				ModulePermissionID: gid,
				IsActive:           true,
			})
		}
		return s.roleRepo.Create(txCtx, role)
	})
}
