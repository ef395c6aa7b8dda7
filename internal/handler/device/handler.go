package device

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/phms-engine/internal/middleware"
	"github.com/jwalitptl/phms-engine/pkg/httputil"
	"github.com/jwalitptl/phms-engine/pkg/validator"
)

type TokenStore interface {
	SetDeviceToken(ctx context.Context, userID, token string) error
	DeleteDeviceToken(ctx context.Context, userID string) error
}

type Handler struct {
	tokens    TokenStore
	validator validator.Validator
}

func NewHandler(tokens TokenStore, v validator.Validator) *Handler {
	return &Handler{tokens: tokens, validator: v}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	d := r.Group("/devices")
	{
		d.POST("/token", h.RegisterToken)
		d.DELETE("/token", h.DeleteToken)
	}
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

func (h *Handler) RegisterToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tokens.SetDeviceToken(c.Request.Context(), middleware.UserID(c), req.Token); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteToken(c *gin.Context) {
	if err := h.tokens.DeleteDeviceToken(c.Request.Context(), middleware.UserID(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
