package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/models"
)

// RecordHandler serves datastore ingest.
type RecordHandler struct {
	svc domain.RecordService
	log *logrus.Logger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(svc domain.RecordService, log *logrus.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, log: log}
}

// Ingest handles POST /api/v1/datastores/:datastore/:table/records.
func (h *RecordHandler) Ingest(c *gin.Context) {
	datastore, table := c.Param("datastore"), c.Param("table")
	for _, id := range []string{datastore, table} {
		if err := validatePathID(id); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
	}

	var req models.IngestRequest
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

	result, err := h.svc.IngestRecords(c.Request.Context(), tenantID, datastore, table, req.Records)
	if err != nil {
		respondServiceError(c, h.log, err, "records.ingest")
		return
	}

	c.JSON(http.StatusCreated, result)
}
