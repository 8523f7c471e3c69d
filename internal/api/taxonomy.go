package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/models"
)

// TaxonomyHandler serves the widget and taxonomy endpoints.
type TaxonomyHandler struct {
	svc domain.TaxonomyService
	log *logrus.Logger
}

// NewTaxonomyHandler creates a TaxonomyHandler.
func NewTaxonomyHandler(svc domain.TaxonomyService, log *logrus.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{svc: svc, log: log}
}

// Widgets handles GET /api/v1/widgets.
func (h *TaxonomyHandler) Widgets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"widgets": h.svc.Widgets()})
}

// Build handles POST /api/v1/widgets/:id/taxonomy. An empty body aggregates
// the widget's datastore table.
func (h *TaxonomyHandler) Build(c *gin.Context) {
	widgetID := c.Param("id")
	if err := validatePathID(widgetID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
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

	result, err := h.svc.Build(c.Request.Context(), tenantID, widgetID, req.Records)
	if err != nil {
		respondServiceError(c, h.log, err, "taxonomy.build")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Show handles GET /api/v1/widgets/:id/taxonomy.
func (h *TaxonomyHandler) Show(c *gin.Context) {
	widgetID := c.Param("id")
	if err := validatePathID(widgetID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	result, err := h.svc.Tree(c.Request.Context(), tenantID, widgetID)
	if err != nil {
		respondServiceError(c, h.log, err, "taxonomy.show")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Toggle handles POST /api/v1/widgets/:id/taxonomy/toggle.
func (h *TaxonomyHandler) Toggle(c *gin.Context) {
	widgetID := c.Param("id")
	if err := validatePathID(widgetID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	var req models.ToggleRequest
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

	result, err := h.svc.Toggle(c.Request.Context(), tenantID, widgetID, req)
	if err != nil {
		respondServiceError(c, h.log, err, "taxonomy.toggle")
		return
	}

	c.JSON(http.StatusOK, result)
}
