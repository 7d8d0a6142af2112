package logger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLogger_WritesCategories(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogJobEvent("Job started", zap.String("job_id", "abc"))
	ml.LogAppError("Failed to persist job", zap.String("job_id", "abc"))
	ml.LogJobOutput("abc", "stderr", "frame=1 time=00:00:01.00")
	ml.LogJobOutput("abc", "stdout", "")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	today := time.Now()

	jobs, err := reader.ReadLogs(CategoryJob, today, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Job started", jobs[0].Message)
	assert.Equal(t, "info", jobs[0].Level)
	assert.Equal(t, "abc", jobs[0].Fields["job_id"])
	assert.NotEmpty(t, jobs[0].Timestamp)

	errs, err := reader.ReadLogs(CategoryError, today, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)

	output, err := reader.ReadLogs(CategoryOutput, today, 0)
	require.NoError(t, err)
	require.Len(t, output, 1)
	assert.Equal(t, "stderr", output[0].Fields["stream"])
}

func TestMultiLogger_RotatesDaily(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	ml.now = func() time.Time { return day }
	ml.LogJobEvent("before midnight")

	day = day.Add(2 * time.Minute)
	ml.LogJobEvent("after midnight")
	require.NoError(t, ml.Sync())

	assert.FileExists(t, filepath.Join(dir, "job-20260301.log"))
	assert.FileExists(t, filepath.Join(dir, "job-20260302.log"))

	entries, err := NewLogReader(dir).ReadLogs(CategoryJob, day, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "after midnight", entries[0].Message)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		ml.LogJobEvent("Job completed", zap.String("job_id", id))
	}
	ml.LogJobEvent("Job failed", zap.String("job_id", "e"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	entries, err := reader.ReadLogs(CategoryJob, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].Fields["job_id"])
	assert.Equal(t, "e", entries[1].Fields["job_id"])

	entries, err = reader.SearchLogs(CategoryJob, time.Now(), "FAILED", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = reader.ReadLogs(CategoryJob, time.Now().AddDate(0, 0, -30), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("job")
	require.NoError(t, err)
	assert.Equal(t, CategoryJob, c)

	_, err = ParseCategory("web")
	assert.Error(t, err)
}

func TestParseEntry_PlainText(t *testing.T) {
	entry := parseEntry(CategoryOutput, "not json")
	assert.Equal(t, "not json", entry.Message)
	assert.Equal(t, "output", entry.Category)
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "giffer.log")
	l, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)

	assert.NotNil(t, NewDefault())
}
