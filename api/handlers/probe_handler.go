package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/infrastructure"
)

// ProbeHandler exposes ffprobe stream queries
type ProbeHandler struct {
	prober *infrastructure.Prober
	logger *zap.Logger
}

// NewProbeHandler creates a new probe handler
func NewProbeHandler(prober *infrastructure.Prober, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{prober: prober, logger: logger}
}

// Probe handles GET /api/v1/probe?file=...&fields=width,height
func (h *ProbeHandler) Probe(c *gin.Context) {
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'file' is required"})
		return
	}

	var fields []string
	for _, f := range strings.Split(c.Query("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'fields' is required"})
		return
	}

	values, err := h.prober.Probe(c.Request.Context(), file, fields...)
	if err != nil {
		var probeErr *infrastructure.ProbeError
		if errors.As(err, &probeErr) && !errors.Is(err, infrastructure.ErrLaunch) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "output": probeErr.Output})
			return
		}
		h.logger.Error("Probe failed", zap.String("file", file), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := make(map[string]string, len(fields))
	for i, f := range fields {
		result[f] = values[i]
	}
	c.JSON(http.StatusOK, gin.H{
		"file":   file,
		"values": result,
	})
}
