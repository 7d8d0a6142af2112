package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads the daily files written by MultiLogger
type LogReader struct {
	logsDir string
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{logsDir: logsDir}
}

// ParseCategory validates a category name
func ParseCategory(name string) (LogCategory, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown log category: %s", name)
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return filepath.Join(lr.logsDir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

// ReadLogs returns the last limit entries of a category for date. A limit of
// zero returns everything.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	return lr.read(category, date, "", limit)
}

// SearchLogs is ReadLogs restricted to entries whose message, level or
// fields contain query, case-insensitively
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	return lr.read(category, date, strings.ToLower(query), limit)
}

func (lr *LogReader) read(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if errors.Is(err, os.ErrNotExist) {
		return []LogEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := []LogEntry{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(line), query) {
			continue
		}
		entries = append(entries, parseEntry(category, line))
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseEntry decodes one JSON line, falling back to a plain message
func parseEntry(category LogCategory, line string) LogEntry {
	entry := LogEntry{Category: string(category)}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		entry.Level = "info"
		entry.Message = line
		return entry
	}

	entry.Timestamp, _ = raw["ts"].(string)
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}
