package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/interfaces/http/dto"
	"github.com/marketplace/returns/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the id assigned by the RequestID middleware, or the
// caller's header when the middleware did not run
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// caller returns the vendor scope and actor resolved by ActorAuth
func caller(c *gin.Context) (uuid.UUID, tracking.Actor, error) {
	vendorID, ok := middleware.GetVendorID(c)
	if !ok {
		return uuid.Nil, tracking.Actor{}, shared.ErrUnauthorized
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		return uuid.Nil, tracking.Actor{}, shared.ErrUnauthorized
	}
	return vendorID, actor, nil
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, shared.NewValidationError("INVALID_ID", "Invalid ID format")
	}
	return id, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnauthorized, code, message)
}

// BindError answers a failed ShouldBind* with a 400 listing the invalid fields
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError maps an error to the response envelope by its kind. Domain codes
// pass through; anything that is not a DomainError becomes a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatusForKind(domainErr.Kind)
		message := domainErr.Message
		if status >= http.StatusInternalServerError {
			// storage details stay in the logs
			message = "An unexpected error occurred"
		}
		h.Error(c, status, domainErr.Code, message)
		return
	}

	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
