package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/models"
)

// FilterHandler serves the filter collection endpoints.
type FilterHandler struct {
	svc domain.FilterService
	log *logrus.Logger
}

// NewFilterHandler creates a FilterHandler.
func NewFilterHandler(svc domain.FilterService, log *logrus.Logger) *FilterHandler {
	return &FilterHandler{svc: svc, log: log}
}

// List handles GET /api/v1/filters.
func (h *FilterHandler) List(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	filters, err := h.svc.ListFilters(c.Request.Context(), tenantID)
	if err != nil {
		respondServiceError(c, h.log, err, "filters.list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"filters": filters})
}

// Exchange handles POST /api/v1/filters/exchange.
func (h *FilterHandler) Exchange(c *gin.Context) {
	var req models.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	filters, err := h.svc.ExchangeFilters(c.Request.Context(), tenantID, req)
	if err != nil {
		respondServiceError(c, h.log, err, "filters.exchange")
		return
	}

	c.JSON(http.StatusOK, gin.H{"filters": filters})
}

// Clear handles DELETE /api/v1/filters.
func (h *FilterHandler) Clear(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	n, err := h.svc.ClearFilters(c.Request.Context(), tenantID)
	if err != nil {
		respondServiceError(c, h.log, err, "filters.clear")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
