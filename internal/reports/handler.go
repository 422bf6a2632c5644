package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/reports/benchmarks"
	"co2nex/carbon-audit/audit-backend/internal/reports/export"
	"co2nex/carbon-audit/audit-backend/pkg/storage"
)

// Handler handles HTTP requests for audit reports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers audit routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	audits := router.Group("/audits")
	{
		audits.POST("", h.runAudit)
		audits.GET("", h.listAudits)
		audits.GET("/summary", h.getSummary)
		audits.GET("/metrics", h.getCatalogue)
		audits.GET("/:id", h.getAudit)
		audits.GET("/:id/export", h.exportAudit)
		audits.GET("/:id/archive", h.archiveURL)
		audits.GET("/:id/benchmark", h.benchmarkAudit)
	}
}

// runAudit handles POST /api/v1/audits
func (h *Handler) runAudit(c *gin.Context) {
	var req RunAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.service.RunAudit(c.Request.Context(), &req, TriggerAPI)
	if err != nil {
		h.fail(c, "Failed to run audit", err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// listAudits handles GET /api/v1/audits
func (h *Handler) listAudits(c *gin.Context) {
	filters := &ListFilters{
		ProjectID: c.Query("project_id"),
		Page:      h.getIntParam(c, "page", 1),
		PageSize:  h.getIntParam(c, "page_size", 20),
	}

	response, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.fail(c, "Failed to list audits", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// getSummary handles GET /api/v1/audits/summary
func (h *Handler) getSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		h.fail(c, "Failed to summarize audits", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// getCatalogue handles GET /api/v1/audits/metrics
func (h *Handler) getCatalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metrics": report.Catalogue()})
}

// getAudit handles GET /api/v1/audits/:id
func (h *Handler) getAudit(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get audit", err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// exportAudit handles GET /api/v1/audits/:id/export
func (h *Handler) exportAudit(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.service.Export(c.Request.Context(), id, format)
	if err != nil {
		h.fail(c, "Failed to export audit", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id.String()+"."+format.Extension()+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}

// archiveURL handles GET /api/v1/audits/:id/archive
func (h *Handler) archiveURL(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", "pdf"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := h.service.ArchiveURL(c.Request.Context(), id, format)
	if err != nil {
		h.fail(c, "Failed to presign archived export", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": storage.DefaultURLExpiry.String()})
}

// benchmarkAudit handles GET /api/v1/audits/:id/benchmark
func (h *Handler) benchmarkAudit(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	key := report.MetricKey(c.DefaultQuery("metric", string(report.KeyCreditEstimate)))
	if _, known := report.Lookup(key); !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown metric"})
		return
	}

	cmp, err := h.service.Benchmark(c.Request.Context(), id, key)
	if err != nil {
		h.fail(c, "Failed to benchmark audit", err)
		return
	}

	c.JSON(http.StatusOK, cmp)
}

// =====================================================
// Helper Methods
// =====================================================

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audit ID"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps service errors to status codes. Only unexpected errors are logged.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, benchmarks.ErrNotComparable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, benchmarks.ErrEmptyCohort), errors.Is(err, benchmarks.ErrMetricNoValue):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// getIntParam gets an integer query parameter with a default value
func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
