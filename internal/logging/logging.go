package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", ServiceName, sessionStart.Format("20060102_150405")),
	)
}

// OpenLogFile creates logsDir if needed and opens the session log for
// appending. An existing file at the same path is moved to <path>.old.
func OpenLogFile(logsDir string, sessionStart time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating logs dir: %w", err)
	}

	path := LogFilePath(logsDir, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, path, fmt.Errorf("rotating log file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, path, fmt.Errorf("opening log file: %w", err)
	}
	return f, path, nil
}
