package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryJob    LogCategory = "job"    // Job lifecycle events (JSON)
	CategoryError  LogCategory = "error"  // Application errors (JSON)
	CategoryOutput LogCategory = "output" // Raw tool output, one line per stream write
)

// Categories lists every category MultiLogger writes
var Categories = []LogCategory{CategoryJob, CategoryError, CategoryOutput}

// MultiLogger writes categorized logs to daily files in LogsDir
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	files       []*os.File
	config      MultiLoggerConfig
	level       zapcore.Level
	mu          sync.RWMutex
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config: config,
		level:  level,
		now:    time.Now,
	}
	if err := ml.open(ml.now().Format("20060102")); err != nil {
		return nil, err
	}
	return ml, nil
}

// open creates the loggers for date. Caller holds mu or owns ml exclusively.
func (ml *MultiLogger) open(date string) error {
	loggers := make(map[LogCategory]*zap.Logger, len(Categories))
	var files []*os.File

	for _, category := range Categories {
		level := ml.level
		if category == CategoryError {
			level = zapcore.ErrorLevel
		}

		file, err := os.OpenFile(ml.logPath(category, date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		files = append(files, file)
		loggers[category] = zap.New(zapcore.NewCore(categoryEncoder(), zapcore.AddSync(file), level))
	}

	ml.loggers = loggers
	ml.files = files
	ml.currentDate = date
	return nil
}

func categoryEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""
	return zapcore.NewJSONEncoder(encoderConfig)
}

func (ml *MultiLogger) logPath(category LogCategory, date string) string {
	return filepath.Join(ml.config.LogsDir, fmt.Sprintf("%s-%s.log", category, date))
}

// rotate switches to new files when the day changed
func (ml *MultiLogger) rotate() {
	date := ml.now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if date == current {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if date == ml.currentDate {
		return
	}
	old := ml.files
	for _, l := range ml.loggers {
		_ = l.Sync()
	}
	if err := ml.open(date); err != nil {
		// keep writing to yesterday's files
		return
	}
	for _, f := range old {
		f.Close()
	}
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// Job returns the job event logger
func (ml *MultiLogger) Job() *zap.Logger {
	return ml.GetLogger(CategoryJob)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogJobEvent logs a job lifecycle event with structured data
func (ml *MultiLogger) LogJobEvent(event string, fields ...zap.Field) {
	ml.Job().Info(event, fields...)
}

// LogJobOutput records captured tool output for a job
func (ml *MultiLogger) LogJobOutput(jobID, stream, output string) {
	if output == "" {
		return
	}
	ml.GetLogger(CategoryOutput).Info(output,
		zap.String("job_id", jobID),
		zap.String("stream", stream))
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all log files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, f := range ml.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	ml.files = nil
	return lastErr
}
