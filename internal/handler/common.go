package handler

import (
	"net/http"

	"atelier/internal/middleware"
	"atelier/internal/service"
	"atelier/pkg/apperr"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// actorFromContext rebuilds the caller identity set by the auth middleware.
func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{}

	if raw, ok := c.Get(middleware.CtxUserID); ok {
		if s, ok := raw.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				actor.ID = id
			}
		}
	}
	if raw, ok := c.Get(middleware.CtxIsSuperAdmin); ok {
		if b, ok := raw.(bool); ok {
			actor.IsSuperAdmin = b
		}
	}
	if raw, ok := c.Get(middleware.CtxRoleIDs); ok {
		if roles, ok := raw.([]string); ok {
			for _, r := range roles {
				if id, err := uuid.Parse(r); err == nil {
					actor.RoleIDs = append(actor.RoleIDs, id)
				}
			}
		}
	}
	return actor
}

// respondError translates a service error into the JSON envelope.
func respondError(c *gin.Context, err error) {
	if kindErr, ok := apperr.As(err); ok {
		status := kindErr.Kind.HTTPStatus()
		if kindErr.Data != nil {
			c.JSON(status, response.ErrorWithData(status, kindErr.Message, kindErr.Data))
			return
		}
		c.JSON(status, response.Error(status, kindErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "internal server error"))
}
