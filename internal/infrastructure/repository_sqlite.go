package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/giffer-go/internal/domain"
)

// filterColumns are the job columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"status":   true,
	"tool":     true,
	"work_dir": true,
}

// SQLiteJobRepository implements JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository creates a new SQLite repository
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Job{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Create creates a new job
func (r *SQLiteJobRepository) Create(job *domain.Job) error {
	return r.db.Create(job).Error
}

// Update updates an existing job
func (r *SQLiteJobRepository) Update(job *domain.Job) error {
	return r.db.Save(job).Error
}

// Delete deletes a job by ID
func (r *SQLiteJobRepository) Delete(id string) error {
	result := r.db.Delete(&domain.Job{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// FindByID finds a job by ID
func (r *SQLiteJobRepository) FindByID(id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByStatus finds jobs by status, oldest first
func (r *SQLiteJobRepository) FindByStatus(status domain.JobStatus) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("status = ?", status).Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}

// FindAll finds all jobs with optional filters
func (r *SQLiteJobRepository) FindAll(filters map[string]interface{}) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// Count returns the total number of jobs
func (r *SQLiteJobRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Job{}).Count(&count).Error
	return count, err
}

// GetStats returns job statistics
func (r *SQLiteJobRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}

	statusCounts := []struct {
		Status domain.JobStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		stats.Total += sc.Count
		switch sc.Status {
		case domain.JobQueued:
			stats.Queued = sc.Count
		case domain.JobRunning:
			stats.Running = sc.Count
		case domain.JobCompleted:
			stats.Completed = sc.Count
		case domain.JobFailed:
			stats.Failed = sc.Count
		case domain.JobCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
