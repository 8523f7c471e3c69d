package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/httputil"
	"github.com/neonviz/neon/internal/metrics"
	"github.com/neonviz/neon/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnavailable     = "unavailable"
	ErrCodeValidationError = "validation_error"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondServiceError maps a service error onto a status code. Unknown
// errors are logged and hidden behind a 500.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error, action string) {
	switch {
	case errors.Is(err, models.ErrWidgetNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "widget not found")
	case errors.Is(err, models.ErrNodeNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "taxonomy node not found")
	case errors.Is(err, models.ErrAmbiguousPath):
		respondError(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, models.ErrTreeNotBuilt):
		respondError(c, http.StatusConflict, ErrCodeConflict, "taxonomy has not been built")
	case errors.Is(err, models.ErrSearchUnavailable):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "record search is not configured; supply records")
	default:
		log.WithError(err).WithField("action", action).Error("request failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
