package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/tenant"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/dto"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/middleware"
)

const jsonContentType = "application/json; charset=utf-8"

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewInvalidArgument("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindOptionalJSON binds a body that may be absent.
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, obj)
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewInvalidArgument("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// PathID parses a UUID path parameter.
func (h *BaseHandler) PathID(c *gin.Context, name string) (id.ID, bool) {
	v, err := dto.ParseID(name, c.Param(name))
	if err != nil {
		h.Error(c, err)
		return id.ID{}, false
	}
	return v, true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Principal is the caller as seen by the stock service.
func (h *BaseHandler) Principal(c *gin.Context) stock.Principal {
	ctx := c.Request.Context()
	return stock.Principal{
		UserID:   appctx.GetUserID(ctx),
		TenantID: tenant.GetTenantID(ctx),
	}
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.JSON(c, http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.JSON(c, http.StatusOK, data)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	h.JSON(c, http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}

// JSON writes data and records it for idempotent replay.
func (h *BaseHandler) JSON(c *gin.Context, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.Data(c, status, jsonContentType, body)
}

// Data writes raw bytes and records them for idempotent replay.
func (h *BaseHandler) Data(c *gin.Context, status int, contentType string, body []byte) {
	middleware.CompleteIdempotency(c, status, contentType, body)
	c.Data(status, contentType, body)
}
