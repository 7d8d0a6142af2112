package domain

import "errors"

// ErrJobNotFound is returned by repositories for unknown ids
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines the interface for job persistence
type JobRepository interface {
	// Create creates a new job
	Create(job *Job) error

	// Update updates an existing job
	Update(job *Job) error

	// Delete deletes a job by ID
	Delete(id string) error

	// FindByID finds a job by ID, ErrJobNotFound if absent
	FindByID(id string) (*Job, error)

	// FindByStatus finds jobs by status
	FindByStatus(status JobStatus) ([]*Job, error)

	// FindAll finds all jobs with optional column filters, newest first
	FindAll(filters map[string]interface{}) ([]*Job, error)

	// Count returns the total number of jobs
	Count() (int64, error)

	// GetStats returns job statistics
	GetStats() (*JobStats, error)
}

// JobStats represents job statistics
type JobStats struct {
	Total     int64 `json:"total"`
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}
