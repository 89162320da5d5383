package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/service"
	"atelier/pkg/pagination"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audit := router.Group("/audit")
	audit.Use(middleware.RequireSuperAdmin())
	{
		audit.GET("", h.ListEntries)
	}
}

// ListEntries returns the activity history, newest first, paginated.
func (h *AuditHandler) ListEntries(c *gin.Context) {
	params := pagination.Parse(c)

	entries, total, err := h.auditService.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "audit entries retrieved", gin.H{
		"entries": entries,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}
