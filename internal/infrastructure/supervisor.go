package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/domain"
)

// ErrLaunch is matched by every error returned when a process cannot start
var ErrLaunch = errors.New("failed to launch process")

// LaunchError reports a command that could not be started
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunch, e.Err}
}

// ResourceUsage is what was sampled from the child while it ran
type ResourceUsage struct {
	PeakRSS    uint64  `json:"peak_rss"`
	CPUPercent float64 `json:"cpu_percent"`
	Samples    int     `json:"samples"`
}

// ProcessResult is the outcome of one supervised run
type ProcessResult struct {
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Aborted  bool          `json:"aborted"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	PID      int           `json:"pid"`
	Duration time.Duration `json:"duration"`
	Usage    ResourceUsage `json:"usage"`
}

// RunOption tweaks a single Run call
type RunOption func(*runOptions)

type runOptions struct {
	finalNotify bool
	dir         string
	env         map[string]string
}

// WithoutFinalNotify suppresses the terminal callback with Done set
func WithoutFinalNotify() RunOption {
	return func(o *runOptions) { o.finalNotify = false }
}

// WithDir runs the command in dir
func WithDir(dir string) RunOption {
	return func(o *runOptions) { o.dir = dir }
}

// WithEnv adds variables on top of the supervisor environment
func WithEnv(env map[string]string) RunOption {
	return func(o *runOptions) { o.env = env }
}

// Supervisor runs external tools and reports their progress
type Supervisor struct {
	config     domain.SupervisorConfig
	translator *Translator
	logger     *zap.Logger
}

// NewSupervisor creates a supervisor. Zero durations fall back to defaults.
func NewSupervisor(config domain.SupervisorConfig, translator *Translator, logger *zap.Logger) *Supervisor {
	defaults := domain.DefaultConfig().Supervisor
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.KillGrace <= 0 {
		config.KillGrace = defaults.KillGrace
	}
	if config.WaitDelay <= 0 {
		config.WaitDelay = defaults.WaitDelay
	}
	if translator == nil {
		translator = NewTranslator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{config: config, translator: translator, logger: logger}
}

// Run starts cmd and polls it until it exits. onProgress may be nil.
// Returning domain.Abort from onProgress, or cancelling ctx, terminates the
// process. Run returns only after the process has been reaped.
func (s *Supervisor) Run(ctx context.Context, cmd domain.Command, onProgress domain.ProgressFunc, opts ...RunOption) (*ProcessResult, error) {
	o := runOptions{finalNotify: s.config.NotifyFinal}
	for _, opt := range opts {
		opt(&o)
	}

	if cmd.IsZero() {
		return nil, &LaunchError{Err: domain.ErrEmptyCommand}
	}

	c := exec.Command(cmd.Binary(), cmd.Args()...)
	c.Dir = o.dir
	c.Env = s.environ(o.env)
	stdout, stderr := &streamBuffer{}, &streamBuffer{}
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = s.config.WaitDelay
	setProcessGroup(c)

	log := s.logger.With(zap.String("command", cmd.String()))
	started := time.Now()
	if err := c.Start(); err != nil {
		log.Error("Failed to start process", zap.Error(err))
		return nil, &LaunchError{Command: cmd.String(), Err: err}
	}
	pid := c.Process.Pid
	log.Debug("Process started", zap.Int("pid", pid))

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = c.Wait()
		close(exited)
	}()

	term := &terminator{cmd: c, grace: s.config.KillGrace, logger: log}
	tracker := newProgressTracker(s.translator, cmd)
	sampler := newUsageSampler(pid)
	aborted := s.poll(ctx, exited, term, tracker, sampler, stdout, stderr, onProgress)

	<-exited
	term.stop()

	final := tracker.flush(stdout.Take(), stderr.Take())
	final.Done = true
	if onProgress != nil && o.finalNotify {
		onProgress(final)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		log.Warn("Failed to collect process output", zap.Error(waitErr))
	}

	exitCode := -1
	if c.ProcessState != nil {
		exitCode = c.ProcessState.ExitCode()
	}

	result := &ProcessResult{
		Success:  exitCode == 0 && !aborted,
		ExitCode: exitCode,
		Aborted:  aborted,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		PID:      pid,
		Duration: time.Since(started),
		Usage:    sampler.usage,
	}
	log.Debug("Process finished",
		zap.Int("pid", pid),
		zap.Int("exit_code", exitCode),
		zap.Bool("aborted", aborted),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// poll drives the callback until the process exits or is aborted. It reports
// whether the run was aborted.
func (s *Supervisor) poll(ctx context.Context, exited <-chan struct{}, term *terminator, tracker *progressTracker,
	sampler *usageSampler, stdout, stderr *streamBuffer, onProgress domain.ProgressFunc) bool {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-exited:
			return false
		case <-ctx.Done():
			term.terminate()
			return true
		case <-ticker.C:
		}

		sampler.sample()
		state := tracker.next(stdout.Take(), stderr.Take())
		if onProgress != nil && onProgress(state) == domain.Abort {
			term.terminate()
			return true
		}

		select {
		case <-exited:
			return false
		default:
		}
	}
}

func (s *Supervisor) environ(extra map[string]string) []string {
	env := os.Environ()
	for _, vars := range []map[string]string{s.config.Env, extra} {
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+vars[k])
		}
	}
	return env
}

// terminator asks the process to stop, then kills it after a grace period
type terminator struct {
	cmd    *exec.Cmd
	grace  time.Duration
	logger *zap.Logger
	once   sync.Once
	timer  *time.Timer
}

func (t *terminator) terminate() {
	t.once.Do(func() {
		if err := interruptProcess(t.cmd); err != nil {
			t.logger.Debug("Failed to interrupt process", zap.Error(err))
		}
		t.timer = time.AfterFunc(t.grace, func() {
			t.logger.Warn("Process ignored interrupt, killing", zap.Duration("grace", t.grace))
			if err := killProcess(t.cmd); err != nil {
				t.logger.Debug("Failed to kill process", zap.Error(err))
			}
		})
	})
}

func (t *terminator) stop() {
	t.once.Do(func() {})
	if t.timer != nil {
		t.timer.Stop()
	}
}

// streamBuffer collects one output stream. Writes never block on the reader.
type streamBuffer struct {
	mu    sync.Mutex
	buf   []byte
	taken int
}

func (b *streamBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	b.mu.Unlock()
	return len(p), nil
}

// Take returns the bytes written since the previous Take
func (b *streamBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken == len(b.buf) {
		return nil
	}
	out := make([]byte, len(b.buf)-b.taken)
	copy(out, b.buf[b.taken:])
	b.taken = len(b.buf)
	return out
}

func (b *streamBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
