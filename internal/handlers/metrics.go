package handlers

import (
	"net/http"

	"foodval-go/internal/metrics"
	"foodval-go/internal/runner"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MetricsHandler struct {
	log *zap.Logger
}

func NewMetricsHandler(log *zap.Logger) *MetricsHandler {
	return &MetricsHandler{log: log}
}

// SessionMetrics returns the summary measures for the current session as JSON.
func (h *MetricsHandler) SessionMetrics(c *gin.Context) {
	run := c.MustGet(RunContextKey).(*runner.Run)
	rows, err := run.Rows(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to read session rows", zap.String("session_id", run.Session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session data"})
		return
	}

	s := metrics.Summarize(rows)
	c.JSON(http.StatusOK, gin.H{
		"session_id":         run.Session.ID,
		"rows":               len(rows),
		"rates":              s.Rates(),
		"payments":           s.Payments(),
		"mean_dwell_seconds": s.MeanDwellSeconds,
	})
}
