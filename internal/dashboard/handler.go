package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/resource"
)

type Handler struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

func NewHandler(aggregator *Aggregator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{aggregator: aggregator, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard/summary", h.GetSummary)
}

// GetSummary serves the cached totals; refresh=true recomputes them first.
func (h *Handler) GetSummary(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		h.aggregator.Refresh()
	}
	summary, err := h.aggregator.Summary(c.Request.Context(), c.Query("province"))
	if err != nil {
		resource.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  summary,
		"cache": h.aggregator.CacheStats(),
	})
}
