// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts. middleware.ErrorHandler
// renders the response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseDate parses a YYYY-MM-DD body field.
func (h *BaseHandler) ParseDate(c *gin.Context, value string) (time.Time, bool) {
	t, err := orgunit.ParseDate(value)
	if err != nil {
		h.Error(c, err)
		return time.Time{}, false
	}
	return t, true
}

// DryRun reads the dry_run query flag.
func (h *BaseHandler) DryRun(c *gin.Context) (bool, bool) {
	v := c.Query("dry_run")
	if v == "" {
		return false, true
	}
	dry, err := strconv.ParseBool(v)
	if err != nil {
		h.Error(c, apperror.NewValidation("dry_run must be a boolean").WithDetail("dry_run", v))
		return false, false
	}
	return dry, true
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}
