package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/roles")
	{
		roles.GET("", middleware.RequirePermission(model.ModuleRoles, model.PermRead), h.ListRoles)
		roles.GET("/:id", middleware.RequirePermission(model.ModuleRoles, model.PermRead), h.GetRole)
		roles.POST("", middleware.RequirePermission(model.ModuleRoles, model.PermCreate), h.CreateRole)
		roles.PATCH("/:id", middleware.RequirePermission(model.ModuleRoles, model.PermUpdate), h.UpdateRole)
		roles.DELETE("/:id", middleware.RequirePermission(model.ModuleRoles, model.PermDelete), h.DeleteRole)
		roles.DELETE("", middleware.RequirePermission(model.ModuleRoles, model.PermDelete), h.DeleteRoles)
		roles.PATCH("/reactivate", middleware.RequirePermission(model.ModuleRoles, model.PermUpdate), h.ReactivateRoles)
	}

	perms := router.Group("/module-permissions")
	{
		perms.GET("", middleware.RequirePermission(model.ModuleRoles, model.PermRead), h.ListModulePermissions)
	}
}

// ListRoles returns all visible roles with their grants grouped by module.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.FindAll(c.Request.Context(), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "roles retrieved", roles))
}

// GetRole returns a single role by ID.
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "role retrieved", role))
}

// CreateRole creates a custom role with its grants.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "role created", role))
}

// UpdateRole patches a role's name, description or grant set.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	// Grant changes must take effect on the next request, not after the TTL.
	middleware.ClearPermissionCache(c.Param("id"))

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "role updated", role))
}

// DeleteRole removes one role: hard when unused, soft when inactive users
// still reference it.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	msg, err := h.roleService.Remove(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.ClearPermissionCache(c.Param("id"))

	c.JSON(http.StatusOK, response.Success(http.StatusOK, msg, nil))
}

// DeleteRoles removes a batch of roles.
func (h *RoleHandler) DeleteRoles(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.roleService.RemoveAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	middleware.ClearPermissionCache("")

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "roles deleted", nil))
}

// ReactivateRoles restores a batch of soft-deleted roles.
func (h *RoleHandler) ReactivateRoles(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.roleService.ReactivateAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	middleware.ClearPermissionCache("")

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "roles reactivated", nil))
}

// ListModulePermissions returns the grant catalog grouped by module.
func (h *RoleHandler) ListModulePermissions(c *gin.Context) {
	grants, err := h.roleService.ListModulePermissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "module permissions retrieved", grants))
}
