package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	clientService service.ClientService
}

func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

func (h *ClientHandler) RegisterRoutes(router *gin.RouterGroup) {
	clients := router.Group("/clients")
	{
		clients.GET("", middleware.RequirePermission(model.ModuleClients, model.PermRead), h.ListClients)
		clients.GET("/:id", middleware.RequirePermission(model.ModuleClients, model.PermRead), h.GetClient)
		clients.POST("", middleware.RequirePermission(model.ModuleClients, model.PermCreate), h.CreateClient)
		clients.PATCH("/:id", middleware.RequirePermission(model.ModuleClients, model.PermUpdate), h.UpdateClient)
		clients.DELETE("", middleware.RequirePermission(model.ModuleClients, model.PermDelete), h.DeleteClients)
		clients.PATCH("/reactivate", middleware.RequirePermission(model.ModuleClients, model.PermUpdate), h.ReactivateClients)
	}
}

// ListClients returns the visible client registry ordered by creation date.
func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.clientService.FindAll(c.Request.Context(), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "clients retrieved", clients))
}

// GetClient returns a single active client by ID.
func (h *ClientHandler) GetClient(c *gin.Context) {
	client, err := h.clientService.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "client retrieved", client))
}

// CreateClient registers a client keyed by its DNI or RUC.
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "client created", client))
}

// UpdateClient patches a client; a request that changes nothing is a no-op.
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req service.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "client updated", client))
}

// DeleteClients soft-deletes a batch of clients.
func (h *ClientHandler) DeleteClients(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.clientService.RemoveAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "clients deleted", nil))
}

// ReactivateClients restores a batch of soft-deleted clients.
func (h *ClientHandler) ReactivateClients(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.clientService.ReactivateAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "clients reactivated", nil))
}
