package revenue

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the landowner estimator.
type Handler struct {
	calc   *Calculator
	logger *zap.Logger
}

// NewHandler creates a revenue handler.
func NewHandler(calc *Calculator, logger *zap.Logger) *Handler {
	return &Handler{calc: calc, logger: logger}
}

// RegisterRoutes registers the estimator routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	rev := router.Group("/revenue")
	{
		rev.POST("/estimate", h.estimate)
		rev.GET("/land-types", h.landTypes)
	}
}

// estimate handles POST /api/v1/revenue/estimate
func (h *Handler) estimate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	est, err := h.calc.Estimate(req)
	if err != nil {
		if isInputError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to estimate revenue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if est.LandTypeFallback {
		h.logger.Info("Unknown land type, using forest rate", zap.String("land_type", req.LandType))
	}

	c.JSON(http.StatusOK, est)
}

// landTypes handles GET /api/v1/revenue/land-types
func (h *Handler) landTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"land_types": h.calc.LandTypes()})
}

func isInputError(err error) bool {
	return errors.Is(err, ErrInvalidArea) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidAreaUnit)
}
