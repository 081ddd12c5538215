// Package api is the thin HTTP boundary: request binding, calls into
// the service layer, and the single place domain errors become HTTP status
// codes and the {code, message, details} response shape.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

// errorResponse is the error-response shape.
type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// respondError maps a service-layer error to an HTTP status plus the stable
// machine code from apperrors.Code. Handlers never duplicate this mapping.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Code: apperrors.Code(err), Message: err.Error()}

	var validErr *apperrors.ValidationError
	switch {
	case errors.As(err, &validErr):
		status = http.StatusBadRequest
		resp.Message = validErr.Message
		resp.Details = map[string]any{"field": validErr.Field}
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		resp.Message = "resource not found"
	case errors.Is(err, apperrors.ErrVersionConflict):
		status = http.StatusConflict
		resp.Message = "version conflict: the resource was modified concurrently"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		status = http.StatusConflict
		resp.Message = "resource already exists"
	default:
		// Unexpected or infrastructure failure: log the full cause chain,
		// return the stable code with a generic message.
		if s.log != nil {
			s.log.Error("request failed", "path", c.FullPath(), "code", resp.Code, "error", err)
		}
		resp.Message = "internal error"
	}

	c.AbortWithStatusJSON(status, resp)
}

// badRequest is a shorthand for request-binding failures.
func badRequest(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Code:    "INVALID_ARGUMENT",
		Message: message,
		Details: map[string]any{"field": field},
	})
}
