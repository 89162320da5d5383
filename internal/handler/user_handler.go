package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/auth/login", h.Login)
	router.POST("/auth/change-password", middleware.RequireAuth(), h.ChangePassword)

	users := router.Group("/users")
	{
		users.GET("", middleware.RequirePermission(model.ModuleUsers, model.PermRead), h.ListUsers)
		users.GET("/:id", middleware.RequirePermission(model.ModuleUsers, model.PermRead), h.GetUser)
		users.POST("", middleware.RequirePermission(model.ModuleUsers, model.PermCreate), h.CreateUser)
		users.PATCH("/:id", middleware.RequirePermission(model.ModuleUsers, model.PermUpdate), h.UpdateUser)
		users.DELETE("/:id", middleware.RequirePermission(model.ModuleUsers, model.PermDelete), h.DeleteUser)
		users.DELETE("", middleware.RequirePermission(model.ModuleUsers, model.PermDelete), h.DeleteUsers)
		users.PATCH("/:id/reactivate", middleware.RequirePermission(model.ModuleUsers, model.PermUpdate), h.ReactivateUser)
		users.PATCH("/reactivate", middleware.RequirePermission(model.ModuleUsers, model.PermUpdate), h.ReactivateUsers)
		users.POST("/send-new-password", middleware.RequirePermission(model.ModuleUsers, model.PermUpdate), h.SendNewPassword)
	}
}

// Login verifies credentials and returns a signed access token.
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	roleIDs := make([]uuid.UUID, 0, len(user.Roles))
	for _, link := range user.Roles {
		if link.IsActive {
			roleIDs = append(roleIDs, link.RoleID)
		}
	}

	token, err := middleware.GenerateToken(user, roleIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "failed to issue token"))
		return
	}

	if err := h.userService.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "login successful", gin.H{
		"access_token":         token,
		"must_change_password": user.MustChangePassword,
	}))
}

// ChangePassword lets the authenticated user replace a temporary password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req service.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actor := actorFromContext(c)
	if err := h.userService.UpdatePasswordTemp(c.Request.Context(), actor.ID, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "password updated", nil))
}

// ListUsers returns all visible users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.FindAll(c.Request.Context(), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "users retrieved", users))
}

// GetUser returns a single user by ID.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "user retrieved", user))
}

// CreateUser registers a user with a generated temporary password.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "user created", user))
}

// UpdateUser patches a user's fields and role set.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "user updated", user))
}

// DeleteUser soft-deactivates one user.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.Remove(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "user deactivated", nil))
}

// DeleteUsers deactivates a batch of users; accounts that never acted are
// removed outright.
func (h *UserHandler) DeleteUsers(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.userService.Deactivate(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "users deactivated", nil))
}

// ReactivateUser restores one soft-deleted user.
func (h *UserHandler) ReactivateUser(c *gin.Context) {
	user, err := h.userService.Reactivate(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "user reactivated", user))
}

// ReactivateUsers restores a batch of soft-deleted users.
func (h *UserHandler) ReactivateUsers(c *gin.Context) {
	var req service.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.userService.ReactivateAll(c.Request.Context(), req.IDs, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "users reactivated", nil))
}

// SendNewPassword resets another user's password and mails the new one.
func (h *UserHandler) SendNewPassword(c *gin.Context) {
	var req service.SendNewPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.userService.SendNewPassword(c.Request.Context(), req.Email, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "new password sent", nil))
}
