package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/domain"
	"github.com/yourusername/giffer-go/internal/infrastructure"
	"github.com/yourusername/giffer-go/pkg/logger"
)

var (
	// ErrJobNotRunning is returned when cancelling a job that already finished
	ErrJobNotRunning = errors.New("job is not running")

	// ErrJobActive is returned when a running job would be modified
	ErrJobActive = errors.New("job is active")

	// ErrJobNotRetryable is returned when retrying a job that did not fail
	ErrJobNotRetryable = errors.New("only failed or cancelled jobs can be retried")

	// ErrManagerClosed is returned after Shutdown
	ErrManagerClosed = errors.New("job manager is shut down")

	// ErrInvalidRequest wraps errors building a command from a JobRequest
	ErrInvalidRequest = errors.New("invalid job request")
)

// ProcessRunner runs one command under supervision
type ProcessRunner interface {
	Run(ctx context.Context, cmd domain.Command, onProgress domain.ProgressFunc, opts ...infrastructure.RunOption) (*infrastructure.ProcessResult, error)
}

// WorkDirProvisioner returns a ready working directory
type WorkDirProvisioner interface {
	Provision(ctx context.Context, configured string) (string, error)
}

// JobNotifier is told about finished jobs
type JobNotifier interface {
	NotifyJobCompleted(ctx context.Context, job *domain.Job)
	NotifyJobFailed(ctx context.Context, job *domain.Job)
}

// JobRequest describes a command to run. CommandLine wins over Tool and Args.
type JobRequest struct {
	Tool        string   `json:"tool"`
	Args        []string `json:"args"`
	CommandLine string   `json:"command_line"`
	WorkDir     string   `json:"work_dir"`
}

// Command builds the command, mapping tool aliases to configured binaries
func (r JobRequest) Command(tools domain.ToolsConfig) (domain.Command, error) {
	if r.CommandLine != "" {
		parsed, err := domain.ParseCommand(r.CommandLine)
		if err != nil {
			return domain.Command{}, err
		}
		return domain.NewCommand(tools.Resolve(parsed.Binary()), parsed.Args()...), nil
	}
	if r.Tool == "" {
		return domain.Command{}, domain.ErrEmptyCommand
	}
	return domain.NewCommand(tools.Resolve(r.Tool), r.Args...), nil
}

// runGuard keeps one job from executing twice at the same time
type runGuard struct {
	running atomic.Bool
}

func (g *runGuard) acquire() bool { return g.running.CompareAndSwap(false, true) }

func (g *runGuard) release() { g.running.Store(false) }

// activeJob is a job between submission and its terminal state
type activeJob struct {
	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// JobManager runs jobs with bounded concurrency and persists their progress
type JobManager struct {
	repo        domain.JobRepository
	runner      ProcessRunner
	provisioner WorkDirProvisioner
	notifier    JobNotifier
	config      *domain.Config
	logger      *zap.Logger
	events      *logger.MultiLogger

	semaphore chan struct{}
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	active map[string]*activeJob
	guards map[string]*runGuard
	closed bool
}

// NewJobManager creates a job manager. notifier and events may be nil.
func NewJobManager(
	repo domain.JobRepository,
	runner ProcessRunner,
	provisioner WorkDirProvisioner,
	notifier JobNotifier,
	config *domain.Config,
	log *zap.Logger,
	events *logger.MultiLogger,
) *JobManager {
	limit := config.Jobs.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		repo:        repo,
		runner:      runner,
		provisioner: provisioner,
		notifier:    notifier,
		config:      config,
		logger:      log,
		events:      events,
		semaphore:   make(chan struct{}, limit),
		baseCtx:     ctx,
		cancelAll:   cancel,
		active:      make(map[string]*activeJob),
		guards:      make(map[string]*runGuard),
	}
}

// Submit queues a job and runs it in the background
func (m *JobManager) Submit(req JobRequest) (*domain.Job, error) {
	if m.Closed() {
		return nil, ErrManagerClosed
	}
	job, err := m.create(req)
	if err != nil {
		return nil, err
	}
	snapshot := *job
	if err := m.start(job); err != nil {
		m.abandon(job, err)
		return nil, err
	}
	return &snapshot, nil
}

// Run executes a job and waits for it. onProgress, when set, sees every
// progress state and may abort the job. The returned job is always in a
// terminal state unless err is ErrManagerClosed.
func (m *JobManager) Run(ctx context.Context, req JobRequest, onProgress domain.ProgressFunc) (*domain.Job, error) {
	if m.Closed() {
		return nil, ErrManagerClosed
	}
	job, err := m.create(req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.abandon(job, ErrManagerClosed)
		return nil, ErrManagerClosed
	}
	guard := m.guardFor(job.ID)
	if !guard.acquire() {
		m.mu.Unlock()
		m.abandon(job, ErrJobActive)
		return nil, ErrJobActive
	}
	ctx, aj := m.track(ctx, job)
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()
	defer guard.release()

	err = m.execute(ctx, job, aj, onProgress)
	return job, err
}

// Retry runs a failed or cancelled job again in the background
func (m *JobManager) Retry(id string) (*domain.Job, error) {
	if m.Closed() {
		return nil, ErrManagerClosed
	}
	job, err := m.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobFailed && job.Status != domain.JobCancelled {
		return nil, fmt.Errorf("%w: %s", ErrJobNotRetryable, job.Status)
	}

	// the previous run may still be unwinding after its terminal state was stored
	m.mu.Lock()
	guard := m.guardFor(id)
	acquired := guard.acquire()
	m.mu.Unlock()
	if !acquired {
		return nil, ErrJobActive
	}

	job.Status = domain.JobQueued
	job.Percent = domain.PercentUnknown
	job.StatusText = ""
	job.Error = ""
	job.ExitCode = 0
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := m.repo.Update(job); err != nil {
		guard.release()
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	snapshot := *job
	m.logEvent("job_retried", job)
	if err := m.launch(job, guard); err != nil {
		m.abandon(job, err)
		return nil, err
	}
	return &snapshot, nil
}

// abandon cancels a stored job that could not be started
func (m *JobManager) abandon(job *domain.Job, reason error) {
	job.MarkCancelled()
	job.Error = reason.Error()
	if err := m.repo.Update(job); err != nil {
		m.logError("Failed to update job status", job, err)
	}
	m.logEvent("job_abandoned", job)
}

func (m *JobManager) create(req JobRequest) (*domain.Job, error) {
	cmd, err := req.Command(m.config.Tools)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	job := domain.NewJob(cmd)
	job.WorkDir = req.WorkDir
	if err := m.repo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("Job queued", zap.String("id", job.ID), zap.String("command", job.CommandLine))
	m.logEvent("job_queued", job)
	return job, nil
}

// start runs job on the manager's context
func (m *JobManager) start(job *domain.Job) error {
	m.mu.Lock()
	guard := m.guardFor(job.ID)
	acquired := guard.acquire()
	m.mu.Unlock()
	if !acquired {
		return ErrJobActive
	}
	return m.launch(job, guard)
}

// launch runs job in the background. The caller has acquired guard.
func (m *JobManager) launch(job *domain.Job, guard *runGuard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		guard.release()
		return ErrManagerClosed
	}

	ctx, aj := m.track(m.baseCtx, job)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer guard.release()
		// failures are recorded on the job
		_ = m.execute(ctx, job, aj, nil)
	}()
	return nil
}

// track registers job as active so Cancel can reach it. Caller holds mu.
func (m *JobManager) track(ctx context.Context, job *domain.Job) (context.Context, *activeJob) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.baseCtx, cancel)
	aj := &activeJob{cancel: func() {
		stop()
		cancel()
	}}
	m.active[job.ID] = aj
	return ctx, aj
}

// guardFor returns the job's guard. Caller holds mu.
func (m *JobManager) guardFor(id string) *runGuard {
	g, ok := m.guards[id]
	if !ok {
		g = &runGuard{}
		m.guards[id] = g
	}
	return g
}

// execute takes job from queued to a terminal state. The caller holds the
// job's runGuard.
func (m *JobManager) execute(ctx context.Context, job *domain.Job, aj *activeJob, onProgress domain.ProgressFunc) error {
	defer func() {
		aj.cancel()
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
	}()

	select {
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	case <-ctx.Done():
		job.MarkCancelled()
		m.finish(job)
		return nil
	}

	cmd, err := job.Command()
	if err != nil {
		return m.fail(job, fmt.Errorf("invalid stored command: %w", err))
	}

	configured := job.WorkDir
	if configured == "" {
		configured = m.config.WorkDir.Path
	}
	workDir, err := m.provisioner.Provision(ctx, configured)
	if err != nil {
		return m.fail(job, err)
	}

	job.MarkRunning(workDir)
	if err := m.repo.Update(job); err != nil {
		m.logError("Failed to update job status", job, err)
	}
	m.logger.Info("Job started", zap.String("id", job.ID), zap.String("work_dir", workDir))
	m.logEvent("job_started", job)

	callback := func(state domain.ProgressState) domain.Decision {
		if job.ApplyProgress(state) {
			if err := m.repo.Update(job); err != nil {
				m.logError("Failed to persist progress", job, err)
			}
		}
		decision := domain.Continue
		if onProgress != nil {
			decision = onProgress(state)
		}
		if aj.cancelled.Load() {
			return domain.Abort
		}
		if decision == domain.Abort {
			aj.cancelled.Store(true)
		}
		return decision
	}

	result, err := m.runner.Run(ctx, cmd, callback, infrastructure.WithDir(workDir))
	if err != nil {
		return m.fail(job, err)
	}

	job.ExitCode = result.ExitCode
	job.SetOutput(result.Stdout, result.Stderr, m.config.Jobs.MaxOutputBytes)
	if m.events != nil {
		m.events.LogJobOutput(job.ID, "stdout", result.Stdout)
		m.events.LogJobOutput(job.ID, "stderr", result.Stderr)
	}

	switch {
	case result.Success:
		job.MarkCompleted()
	case result.Aborted:
		job.MarkCancelled()
	case result.ExitCode < 0:
		job.MarkFailed(fmt.Errorf("%s terminated by signal", job.Tool))
	default:
		job.MarkFailed(fmt.Errorf("%s exited with code %d", job.Tool, result.ExitCode))
	}

	m.logger.Info("Job finished",
		zap.String("id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Uint64("peak_rss", result.Usage.PeakRSS))
	m.finish(job)
	return nil
}

func (m *JobManager) fail(job *domain.Job, err error) error {
	job.MarkFailed(err)
	m.logError("Job failed", job, err)
	m.finish(job)
	return err
}

// finish persists a terminal job and reports it
func (m *JobManager) finish(job *domain.Job) {
	if err := m.repo.Update(job); err != nil {
		m.logError("Failed to update job status", job, err)
	}
	m.logEvent("job_"+string(job.Status), job)

	if m.notifier == nil {
		return
	}
	switch job.Status {
	case domain.JobCompleted:
		m.notifier.NotifyJobCompleted(context.Background(), job)
	case domain.JobFailed:
		m.notifier.NotifyJobFailed(context.Background(), job)
	}
}

// Cancel aborts a queued or running job
func (m *JobManager) Cancel(id string) error {
	m.mu.Lock()
	aj, ok := m.active[id]
	m.mu.Unlock()

	if !ok {
		if _, err := m.repo.FindByID(id); err != nil {
			return err
		}
		return ErrJobNotRunning
	}

	aj.cancelled.Store(true)
	aj.cancel()
	m.logger.Info("Job cancel requested", zap.String("id", id))
	return nil
}

// Get returns a job by ID
func (m *JobManager) Get(id string) (*domain.Job, error) {
	return m.repo.FindByID(id)
}

// List returns jobs, newest first, optionally restricted to status
func (m *JobManager) List(status domain.JobStatus) ([]*domain.Job, error) {
	filters := map[string]interface{}{}
	if status != "" {
		filters["status"] = status
	}
	return m.repo.FindAll(filters)
}

// Stats returns job statistics
func (m *JobManager) Stats() (*domain.JobStats, error) {
	return m.repo.GetStats()
}

// Delete removes a finished job
func (m *JobManager) Delete(id string) error {
	m.mu.Lock()
	_, running := m.active[id]
	m.mu.Unlock()
	if running {
		return ErrJobActive
	}
	if err := m.repo.Delete(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.guards, id)
	m.mu.Unlock()
	return nil
}

// Active returns the number of jobs queued or running in this manager
func (m *JobManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Closed reports whether Shutdown has been called
func (m *JobManager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Recover fails jobs left queued or running by a previous process
func (m *JobManager) Recover() (int, error) {
	recovered := 0
	for _, status := range []domain.JobStatus{domain.JobQueued, domain.JobRunning} {
		jobs, err := m.repo.FindByStatus(status)
		if err != nil {
			return recovered, err
		}
		for _, job := range jobs {
			m.mu.Lock()
			_, live := m.active[job.ID]
			m.mu.Unlock()
			if live {
				continue
			}
			job.MarkFailed(errors.New("interrupted by shutdown"))
			if err := m.repo.Update(job); err != nil {
				return recovered, err
			}
			recovered++
		}
	}
	if recovered > 0 {
		m.logger.Warn("Recovered orphaned jobs", zap.Int("count", recovered))
	}
	return recovered, nil
}

// Shutdown cancels every active job and waits for them to finish
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if m.events != nil {
			m.events.LogJobEvent("manager_stopped")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *JobManager) logEvent(event string, job *domain.Job) {
	if m.events == nil {
		return
	}
	m.events.LogJobEvent(event,
		zap.String("id", job.ID),
		zap.String("tool", job.Tool),
		zap.String("status", string(job.Status)),
		zap.Int("percent", job.Percent))
}

func (m *JobManager) logError(msg string, job *domain.Job, err error) {
	m.logger.Error(msg, zap.String("id", job.ID), zap.Error(err))
	if m.events != nil {
		m.events.LogAppError(msg, zap.String("id", job.ID), zap.Error(err))
	}
}
