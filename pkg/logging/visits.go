package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// visitLogPath is the path to the visit event log file.
var visitLogPath string

// visitLogMu protects concurrent writes to the visit log.
var visitLogMu sync.Mutex

// SetVisitLogPath configures the path for the visit event log file.
func SetVisitLogPath(path string) {
	visitLogMu.Lock()
	defer visitLogMu.Unlock()
	visitLogPath = path
}

// LogVisit appends one line per triggered visit to the visit log file.
func LogVisit(visitorID, poiName string, reason string, at time.Time) {
	visitLogMu.Lock()
	defer visitLogMu.Unlock()

	if visitLogPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(visitLogPath), 0o755); err != nil {
		slog.Error("failed to create visit log directory", "error", err)
		return
	}

	f, err := os.OpenFile(visitLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open visit log", "error", err)
		return
	}
	defer f.Close()

	if at.IsZero() {
		at = time.Now()
	}
	// Format: [2006-01-02 15:04:05] [reason] visitor - poi
	line := fmt.Sprintf("[%s] [%s] %s - %s\n", at.Format("2006-01-02 15:04:05"), reason, visitorID, poiName)

	if _, err := f.WriteString(line); err != nil {
		slog.Error("failed to write visit log", "error", err)
	}
}
