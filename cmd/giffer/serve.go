package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/api"
	"github.com/yourusername/giffer-go/api/handlers"
	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
)

const (
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
	shutdownTimeout    = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job server",
	RunE: func(cmd *cobra.Command, args []string) error {
		detach, _ := cmd.Flags().GetBool("detach")
		if detach {
			return startServerBackground()
		}
		return runServer()
	},
}

func init() {
	serveCmd.Flags().BoolP("detach", "d", false, "Run the server in the background")
}

func runServer() error {
	// nobody can answer a prompt in server mode
	svc, err := loadServices(func(c *domain.Config) { c.WorkDir.AssumeYes = true })
	if err != nil {
		return err
	}
	defer svc.close()
	log := svc.log

	log.Info("Starting giffer server",
		zap.String("version", handlers.Version),
		zap.String("host", svc.config.Server.Host),
		zap.Int("port", svc.config.Server.Port),
		zap.String("platform", svc.platform.Name()),
		zap.Int("concurrent_limit", svc.config.Jobs.ConcurrentLimit))

	if n, err := svc.jobMgr.Recover(); err != nil {
		log.Warn("Failed to recover orphaned jobs", zap.Error(err))
	} else if n > 0 {
		log.Info("Marked interrupted jobs as failed", zap.Int("count", n))
	}

	idle := app.NewIdleWatcher(svc.jobMgr, svc.config.Server.IdleExit, svc.events)
	idle.Start(context.Background())
	defer idle.Stop()

	router := api.SetupRouter(svc.jobMgr, svc.prober, svc.config.Logging.LogsDir, log)

	addr := fmt.Sprintf("%s:%d", svc.config.Server.Host, svc.config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-idle.WaitForExit():
		log.Info("No jobs for a while, exiting", zap.Duration("idle_exit", svc.config.Server.IdleExit))
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// isServerRunning checks if the server is responding to health checks
func isServerRunning(url string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(url + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startServerBackground re-executes this binary as a detached server and
// waits until it answers health checks
func startServerBackground() error {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	if isServerRunning(url) {
		fmt.Printf("Server already running at %s\n", url)
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return err
	}

	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerRunning(url) {
			fmt.Printf("Server started at %s (PID: %d)\n", url, pid)
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}
