package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/pagination"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService service.ProjectService
}

func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects")
	{
		projects.GET("", middleware.RequirePermission(model.ModuleProjects, model.PermRead), h.ListProjects)
		projects.GET("/:id", middleware.RequirePermission(model.ModuleProjects, model.PermRead), h.GetProject)
		projects.POST("", middleware.RequirePermission(model.ModuleProjects, model.PermCreate), h.CreateProject)
		projects.PATCH("/:id", middleware.RequirePermission(model.ModuleProjects, model.PermUpdate), h.UpdateProject)
		projects.DELETE("", middleware.RequirePermission(model.ModuleProjects, model.PermDelete), h.DeleteProjects)
		projects.PATCH("/reactivate", middleware.RequirePermission(model.ModuleProjects, model.PermUpdate), h.ReactivateProjects)

		projects.GET("/:id/quotations", middleware.RequirePermission(model.ModuleQuotations, model.PermRead), h.ListQuotations)
		projects.POST("/:id/quotations", middleware.RequirePermission(model.ModuleQuotations, model.PermCreate), h.CreateQuotation)
	}

	quotations := router.Group("/quotations")
	{
		quotations.PATCH("/:id/status", middleware.RequirePermission(model.ModuleQuotations, model.PermUpdate), h.UpdateQuotationStatus)
		quotations.DELETE("/:id", middleware.RequirePermission(model.ModuleQuotations, model.PermDelete), h.DeleteQuotation)
	}
}

// ListProjects returns visible projects, paginated.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	params := pagination.Parse(c)

	list, err := h.projectService.FindAll(c.Request.Context(), params, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "projects retrieved", list))
}

// GetProject returns a single project by ID.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "project retrieved", project))
}

// CreateProject opens a project for an active client.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "project created", project))
}

// UpdateProject patches a project's fields or status.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "project updated", project))
}

// DeleteProjects soft-deletes a batch of projects.
func (h *ProjectHandler) DeleteProjects(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.projectService.RemoveAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "projects deleted", nil))
}

// ReactivateProjects restores a batch of soft-deleted projects.
func (h *ProjectHandler) ReactivateProjects(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.projectService.ReactivateAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "projects reactivated", nil))
}

// ListQuotations returns all quotations of a project.
func (h *ProjectHandler) ListQuotations(c *gin.Context) {
	quotations, err := h.projectService.ListQuotations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "quotations retrieved", quotations))
}

// CreateQuotation attaches a priced offer to an active project.
func (h *ProjectHandler) CreateQuotation(c *gin.Context) {
	var req service.CreateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quotation, err := h.projectService.CreateQuotation(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "quotation created", quotation))
}

// DeleteQuotation soft-removes a quotation from its project.
func (h *ProjectHandler) DeleteQuotation(c *gin.Context) {
	if err := h.projectService.RemoveQuotation(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "quotation removed", nil))
}

// UpdateQuotationStatus moves a pending quotation to approved or rejected.
func (h *ProjectHandler) UpdateQuotationStatus(c *gin.Context) {
	var req service.UpdateQuotationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quotation, err := h.projectService.UpdateQuotationStatus(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "quotation updated", quotation))
}
