package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
	"github.com/yourusername/giffer-go/internal/infrastructure"
	"github.com/yourusername/giffer-go/pkg/logger"
)

// services is the wired application shared by the subcommands
type services struct {
	config      *domain.Config
	log         *zap.Logger
	events      *logger.MultiLogger
	repo        *infrastructure.SQLiteJobRepository
	platform    infrastructure.Platform
	provisioner *infrastructure.Provisioner
	supervisor  *infrastructure.Supervisor
	prober      *infrastructure.Prober
	jobMgr      *app.JobManager
}

// loadServices wires the application. overrides adjust the loaded config.
func loadServices(overrides ...func(*domain.Config)) (*services, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(config)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event logs: %w", err)
	}

	repo, err := infrastructure.NewSQLiteJobRepository(config.Jobs.DatabasePath)
	if err != nil {
		events.Close()
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	platform := infrastructure.DetectPlatform()

	var confirmer infrastructure.Confirmer = infrastructure.NewPromptConfirmer(os.Stdin, os.Stderr)
	if config.WorkDir.AssumeYes {
		confirmer = infrastructure.AlwaysConfirm
	}
	provisioner := infrastructure.NewProvisioner(config.WorkDir.AppName, platform, confirmer, log)

	supervisor := infrastructure.NewSupervisor(config.Supervisor, infrastructure.NewTranslator(), log)
	prober := infrastructure.NewProber(config.Tools.FFprobe, supervisor)

	notifier := infrastructure.NewNotificationService(&config.Notification, platform, log)

	jobMgr := app.NewJobManager(repo, supervisor, provisioner, notifier, config, log, events)

	return &services{
		config:      config,
		log:         log,
		events:      events,
		repo:        repo,
		platform:    platform,
		provisioner: provisioner,
		supervisor:  supervisor,
		prober:      prober,
		jobMgr:      jobMgr,
	}, nil
}

// close stops running jobs and releases storage and log files
func (s *services) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.jobMgr.Shutdown(ctx); err != nil {
		s.log.Error("Jobs did not stop in time", zap.Error(err))
	}
	if err := s.repo.Close(); err != nil {
		s.log.Error("Failed to close repository", zap.Error(err))
	}
	_ = s.events.Close()
	_ = s.log.Sync()
}
