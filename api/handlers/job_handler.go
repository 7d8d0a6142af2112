package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobMgr *app.JobManager, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobMgr: jobMgr,
		logger: logger,
	}
}

// SubmitJob handles POST /api/v1/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req app.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobMgr.Submit(req)
	if err != nil {
		h.respondError(c, "Failed to submit job", err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	status := domain.JobStatus(c.Query("status"))
	if status != "" && !domain.ValidateJobStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	jobs, err := h.jobMgr.List(status)
	if err != nil {
		h.respondError(c, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobMgr.Stats()
	if err != nil {
		h.respondError(c, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"active": h.jobMgr.Active(),
	})
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobMgr.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobMgr.Cancel(id); err != nil {
		h.respondError(c, "Failed to cancel job", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "cancel requested", "id": id})
}

// RetryJob handles POST /api/v1/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	job, err := h.jobMgr.Retry(c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to retry job", err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// DeleteJob handles DELETE /api/v1/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	if err := h.jobMgr.Delete(c.Param("id")); err != nil {
		h.respondError(c, "Failed to delete job", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// respondError maps job manager errors to HTTP statuses
func (h *JobHandler) respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrJobNotRunning),
		errors.Is(err, app.ErrJobActive),
		errors.Is(err, app.ErrJobNotRetryable):
		status = http.StatusConflict
	case errors.Is(err, app.ErrManagerClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
