package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ValidateJobStatus checks if a status is known
func ValidateJobStatus(s JobStatus) bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Job is one supervised run of an external tool
type Job struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Tool        string     `json:"tool" gorm:"index"`
	CommandLine string     `json:"command_line" gorm:"not null"`
	Argv        string     `json:"-" gorm:"type:text"` // JSON encoded argument vector
	WorkDir     string     `json:"work_dir,omitempty"`
	Status      JobStatus  `json:"status" gorm:"not null;index"`
	Percent     int        `json:"percent" gorm:"not null"`
	StatusText  string     `json:"status_text,omitempty"`
	ExitCode    int        `json:"exit_code"`
	Stdout      string     `json:"stdout,omitempty" gorm:"type:text"`
	Stderr      string     `json:"stderr,omitempty" gorm:"type:text"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job for cmd
func NewJob(cmd Command) *Job {
	argv, _ := json.Marshal(cmd.Argv())
	now := time.Now()
	return &Job{
		ID:          uuid.New().String(),
		Tool:        cmd.Tool(),
		CommandLine: cmd.String(),
		Argv:        string(argv),
		Status:      JobQueued,
		Percent:     PercentUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Command decodes the stored argument vector
func (j *Job) Command() (Command, error) {
	var argv []string
	if err := json.Unmarshal([]byte(j.Argv), &argv); err != nil {
		return Command{}, err
	}
	return CommandFromArgv(argv)
}

// MarkRunning marks the job as running
func (j *Job) MarkRunning(workDir string) {
	j.Status = JobRunning
	j.WorkDir = workDir
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
}

// ApplyProgress records a progress state. It reports whether anything
// visible changed.
func (j *Job) ApplyProgress(p ProgressState) bool {
	changed := false
	if p.HasPercent() && p.Percent != j.Percent {
		j.Percent = p.Percent
		changed = true
	}
	if p.HasStatus() && p.Status != j.StatusText {
		j.StatusText = p.Status
		changed = true
	}
	if changed {
		j.UpdatedAt = time.Now()
	}
	return changed
}

// MarkCompleted marks the job as completed
func (j *Job) MarkCompleted() {
	j.Status = JobCompleted
	j.Percent = 100
	j.finish()
}

// MarkFailed marks the job as failed
func (j *Job) MarkFailed(err error) {
	j.Status = JobFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.finish()
}

// MarkCancelled marks the job as cancelled
func (j *Job) MarkCancelled() {
	j.Status = JobCancelled
	j.finish()
}

func (j *Job) finish() {
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// SetOutput stores the tail of the captured streams, keeping at most
// maxBytes of each
func (j *Job) SetOutput(stdout, stderr string, maxBytes int) {
	j.Stdout = tail(stdout, maxBytes)
	j.Stderr = tail(stderr, maxBytes)
}

func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobCancelled
}

// IsRunning checks if the job is currently running
func (j *Job) IsRunning() bool {
	return j.Status == JobRunning
}
