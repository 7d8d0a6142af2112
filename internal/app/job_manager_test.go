package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/internal/domain"
	"github.com/yourusername/giffer-go/internal/infrastructure"
)

// mockRepo implements domain.JobRepository for testing. It stores copies so
// readers never share a job with the goroutine running it.
type mockRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMockRepo() *mockRepo {
	return &mockRepo{jobs: make(map[string]domain.Job)}
}

func (m *mockRepo) Create(job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockRepo) Update(job *domain.Job) error {
	return m.Create(job)
}

func (m *mockRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *mockRepo) FindByID(id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (m *mockRepo) FindByStatus(status domain.JobStatus) ([]*domain.Job, error) {
	return m.FindAll(map[string]interface{}{"status": status})
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range m.jobs {
		if status, ok := filters["status"]; ok && job.Status != status {
			continue
		}
		j := job
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (m *mockRepo) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.jobs)), nil
}

func (m *mockRepo) GetStats() (*domain.JobStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.JobStats{Total: int64(len(m.jobs))}
	for _, job := range m.jobs {
		switch job.Status {
		case domain.JobCompleted:
			stats.Completed++
		case domain.JobFailed:
			stats.Failed++
		case domain.JobCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (m *mockRepo) status(id string) domain.JobStatus {
	job, err := m.FindByID(id)
	if err != nil {
		return ""
	}
	return job.Status
}

// fakeRunner stands in for the supervisor
type fakeRunner struct {
	run func(ctx context.Context, cmd domain.Command, onProgress domain.ProgressFunc) (*infrastructure.ProcessResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd domain.Command, onProgress domain.ProgressFunc, _ ...infrastructure.RunOption) (*infrastructure.ProcessResult, error) {
	return f.run(ctx, cmd, onProgress)
}

// untilAborted reports progress until told to stop
func untilAborted(ctx context.Context, _ domain.Command, onProgress domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
	for {
		if onProgress(domain.ProgressState{Percent: 10, Fresh: true}) == domain.Abort {
			break
		}
		select {
		case <-ctx.Done():
			return &infrastructure.ProcessResult{Aborted: true, ExitCode: -1}, nil
		case <-time.After(5 * time.Millisecond):
		}
	}
	onProgress(domain.ProgressState{Percent: 10, Done: true})
	return &infrastructure.ProcessResult{Aborted: true, ExitCode: -1}, nil
}

type fakeProvisioner struct {
	dir string
	err error
}

func (p *fakeProvisioner) Provision(context.Context, string) (string, error) {
	return p.dir, p.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (n *fakeNotifier) NotifyJobCompleted(_ context.Context, job *domain.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, job.ID)
}

func (n *fakeNotifier) NotifyJobFailed(_ context.Context, job *domain.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, job.ID)
}

func newTestJobManager(t *testing.T, runner ProcessRunner, limit int) (*JobManager, *mockRepo, *fakeNotifier) {
	t.Helper()
	config := domain.DefaultConfig()
	config.Jobs.ConcurrentLimit = limit
	config.Jobs.MaxOutputBytes = 16

	repo := newMockRepo()
	notifier := &fakeNotifier{}
	m := NewJobManager(repo, runner, &fakeProvisioner{dir: t.TempDir()}, notifier, config, zap.NewNop(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, repo, notifier
}

func TestJobManager_RunCompleted(t *testing.T) {
	runner := &fakeRunner{run: func(_ context.Context, cmd domain.Command, onProgress domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		assert.Equal(t, "yt-dlp", cmd.Binary())
		onProgress(domain.ProgressState{Percent: 50, Status: "Downloaded 50%...", Fresh: true})
		onProgress(domain.ProgressState{Percent: 50, Done: true})
		return &infrastructure.ProcessResult{Success: true, Stdout: "0123456789abcdefghij"}, nil
	}}
	m, repo, notifier := newTestJobManager(t, runner, 1)

	var seen []domain.ProgressState
	job, err := m.Run(context.Background(), JobRequest{Tool: "ytdlp", Args: []string{"URL"}}, func(s domain.ProgressState) domain.Decision {
		seen = append(seen, s)
		return domain.Continue
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Len(t, seen, 2)
	stored, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Percent)
	assert.Equal(t, "Downloaded 50%...", stored.StatusText)
	assert.Equal(t, "456789abcdefghij", stored.Stdout)
	assert.NotEmpty(t, stored.WorkDir)
	assert.Equal(t, []string{job.ID}, notifier.completed)
	assert.Equal(t, 0, m.Active())
}

func TestJobManager_RunFailedExit(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		return &infrastructure.ProcessResult{ExitCode: 1, Stderr: "error"}, nil
	}}
	m, _, notifier := newTestJobManager(t, runner, 1)

	job, err := m.Run(context.Background(), JobRequest{CommandLine: "ffmpeg -i 'my clip.mp4' out.gif"}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, 1, job.ExitCode)
	assert.Contains(t, job.Error, "exited with code 1")
	assert.Equal(t, "error", job.Stderr)
	assert.Equal(t, []string{job.ID}, notifier.failed)
}

func TestJobManager_RunKilledBySignal(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		return &infrastructure.ProcessResult{ExitCode: -1}, nil
	}}
	m, _, _ := newTestJobManager(t, runner, 1)

	job, err := m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.Error, "terminated by signal")
	assert.NotContains(t, job.Error, "code -1")
}

func TestJobManager_RunLaunchError(t *testing.T) {
	launchErr := &infrastructure.LaunchError{Command: "nope", Err: errors.New("not found")}
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		return nil, launchErr
	}}
	m, _, _ := newTestJobManager(t, runner, 1)

	job, err := m.Run(context.Background(), JobRequest{Tool: "nope"}, nil)
	assert.True(t, errors.Is(err, infrastructure.ErrLaunch))
	require.NotNil(t, job)
	assert.Equal(t, domain.JobFailed, job.Status)
}

func TestJobManager_RunProvisionError(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}}
	m, _, _ := newTestJobManager(t, runner, 1)
	m.provisioner = &fakeProvisioner{err: infrastructure.ErrWorkDirUnencodable}

	job, err := m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, nil)
	assert.True(t, errors.Is(err, infrastructure.ErrWorkDirUnencodable))
	assert.Equal(t, domain.JobFailed, job.Status)
}

func TestJobManager_RunCallbackAbort(t *testing.T) {
	m, _, notifier := newTestJobManager(t, &fakeRunner{run: untilAborted}, 1)

	job, err := m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, func(domain.ProgressState) domain.Decision {
		return domain.Abort
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, job.Status)
	assert.Empty(t, notifier.failed)
}

func TestJobManager_SubmitAndCancel(t *testing.T) {
	m, repo, _ := newTestJobManager(t, &fakeRunner{run: untilAborted}, 1)

	job, err := m.Submit(JobRequest{Tool: "ffmpeg"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)

	require.Eventually(t, func() bool { return repo.status(job.ID) == domain.JobRunning }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, m.Cancel(job.ID))
	require.Eventually(t, func() bool { return repo.status(job.ID) == domain.JobCancelled }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.Active() == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Cancel(job.ID), ErrJobNotRunning)
	assert.ErrorIs(t, m.Cancel("missing"), domain.ErrJobNotFound)
}

func TestJobManager_ConcurrencyLimit(t *testing.T) {
	var current, peak int32
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return &infrastructure.ProcessResult{Success: true}, nil
	}}
	m, repo, _ := newTestJobManager(t, runner, 2)

	var ids []string
	for i := 0; i < 5; i++ {
		job, err := m.Submit(JobRequest{Tool: "ffmpeg"})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			if repo.status(id) != domain.JobCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Completed)

	jobs, err := m.List(domain.JobCompleted)
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
}

func TestJobManager_Retry(t *testing.T) {
	var calls int32
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return &infrastructure.ProcessResult{ExitCode: 1}, nil
		}
		return &infrastructure.ProcessResult{Success: true}, nil
	}}
	m, repo, _ := newTestJobManager(t, runner, 1)

	job, err := m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, nil)
	require.NoError(t, err)
	require.Equal(t, domain.JobFailed, job.Status)

	_, err = m.Retry(job.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return repo.status(job.ID) == domain.JobCompleted }, 2*time.Second, 5*time.Millisecond)

	_, err = m.Retry(job.ID)
	assert.ErrorIs(t, err, ErrJobNotRetryable)
}

func TestJobManager_DeleteAndShutdown(t *testing.T) {
	m, repo, _ := newTestJobManager(t, &fakeRunner{run: untilAborted}, 1)

	job, err := m.Submit(JobRequest{Tool: "ffmpeg"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return repo.status(job.ID) == domain.JobRunning }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, m.Delete(job.ID), ErrJobActive)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, domain.JobCancelled, repo.status(job.ID))

	_, err = m.Submit(JobRequest{Tool: "ffmpeg"})
	assert.ErrorIs(t, err, ErrManagerClosed)

	require.NoError(t, m.Delete(job.ID))
	_, err = m.Get(job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobManager_Recover(t *testing.T) {
	m, repo, _ := newTestJobManager(t, &fakeRunner{run: untilAborted}, 1)

	orphan := domain.NewJob(domain.NewCommand("ffmpeg"))
	orphan.MarkRunning("/tmp")
	require.NoError(t, repo.Create(orphan))

	n, err := m.Recover()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.JobFailed, repo.status(orphan.ID))
}

func TestRunGuard(t *testing.T) {
	var g runGuard
	assert.True(t, g.acquire())
	assert.False(t, g.acquire())
	g.release()
	assert.True(t, g.acquire())
}

func TestJobRequest_Command(t *testing.T) {
	tools := domain.ToolsConfig{FFmpeg: "/opt/bin/ffmpeg"}

	cmd, err := JobRequest{Tool: "ffmpeg", Args: []string{"-i", "in.mp4"}}.Command(tools)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/bin/ffmpeg", "-i", "in.mp4"}, cmd.Argv())

	cmd, err = JobRequest{Tool: "ignored", CommandLine: `ffmpeg -i "a b.mp4"`}.Command(tools)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/bin/ffmpeg", "-i", "a b.mp4"}, cmd.Argv())

	_, err = JobRequest{}.Command(tools)
	assert.ErrorIs(t, err, domain.ErrEmptyCommand)
}

func TestJobManager_SubmitInvalidRequest(t *testing.T) {
	m, repo, _ := newTestJobManager(t, &fakeRunner{}, 1)

	_, err := m.Submit(JobRequest{CommandLine: `ffmpeg -i "unterminated`})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = m.Submit(JobRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, domain.ErrEmptyCommand)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestJobManager_ClosedLeavesNoQueuedJobs(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, domain.Command, domain.ProgressFunc) (*infrastructure.ProcessResult, error) {
		return &infrastructure.ProcessResult{ExitCode: 1}, nil
	}}
	m, repo, _ := newTestJobManager(t, runner, 1)

	failed, err := m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, nil)
	require.NoError(t, err)
	require.Equal(t, domain.JobFailed, failed.Status)

	require.NoError(t, m.Shutdown(context.Background()))

	_, err = m.Run(context.Background(), JobRequest{Tool: "ffmpeg"}, nil)
	assert.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.Submit(JobRequest{Tool: "ffmpeg"})
	assert.ErrorIs(t, err, ErrManagerClosed)

	_, err = m.Retry(failed.ID)
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.Equal(t, domain.JobFailed, repo.status(failed.ID))

	queued, err := repo.FindByStatus(domain.JobQueued)
	require.NoError(t, err)
	assert.Empty(t, queued)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestJobManager_AbandonedJobIsCancelled(t *testing.T) {
	m, repo, _ := newTestJobManager(t, &fakeRunner{}, 1)

	job, err := m.create(JobRequest{Tool: "ffmpeg"})
	require.NoError(t, err)
	m.abandon(job, ErrManagerClosed)

	assert.Equal(t, domain.JobCancelled, repo.status(job.ID))
	stored, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, ErrManagerClosed.Error(), stored.Error)
	assert.NotNil(t, stored.CompletedAt)
}
