package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// OpLog represents a single filter manager operation record, suitable
// for an audit trail distinct from the operational logger's free-form
// messages.
type OpLog struct {
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id,omitempty"`
	Op         string    `json:"op"`
	Filter     string    `json:"filter"`
	KeysCount  int       `json:"keys_count,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Logger writes OpLog entries to an optional file and/or the console.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default audit logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file, replacing any previously set one.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes an audit log entry.
func (l *Logger) Log(entry *OpLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "ok"
		if !entry.Success {
			status = "fail"
		}
		fmt.Printf("[audit] %s %s filter=%s %dms\n", status, entry.Op, entry.Filter, entry.DurationMs)
		if entry.Error != "" {
			fmt.Printf("[audit]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file, if one is set.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
