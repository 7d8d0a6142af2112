package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/domain"
)

const notifyTimeout = 10 * time.Second

// NotificationService sends desktop notifications about jobs
type NotificationService struct {
	config   *domain.NotificationConfig
	platform Platform
	logger   *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, platform Platform, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config:   config,
		platform: platform,
		logger:   logger,
	}
}

// Send shows a notification and plays the configured sound
func (n *NotificationService) Send(ctx context.Context, title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := n.platform.Notify(ctx, title, message); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("platform", n.platform.Name()),
			zap.Error(err))
		return err
	}

	if n.config.Sound != "" {
		if err := n.platform.PlaySound(ctx, n.config.Sound); err != nil {
			n.logger.Warn("Failed to play sound", zap.String("sound", n.config.Sound), zap.Error(err))
		}
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyJobCompleted sends notification when a job succeeds
func (n *NotificationService) NotifyJobCompleted(ctx context.Context, job *domain.Job) {
	message := fmt.Sprintf("Success: %s", truncateString(job.CommandLine, 40))
	_ = n.Send(ctx, "Job Completed", message)
}

// NotifyJobFailed sends notification when a job fails
func (n *NotificationService) NotifyJobFailed(ctx context.Context, job *domain.Job) {
	message := fmt.Sprintf("Failed: %s", truncateString(job.CommandLine, 40))
	if job.Error != "" {
		message += " (" + truncateString(job.Error, 40) + ")"
	}
	_ = n.Send(ctx, "Job Failed", message)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
