package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ItemLog represents a single per-item processing outcome: one fetched
// file, one decoded/converted volume, or one rendered product. Stage
// distinguishes which worker produced the entry.
type ItemLog struct {
	Timestamp  time.Time `json:"timestamp"`
	Stage      string    `json:"stage"` // fetch, convert, render
	Radar      string    `json:"radar"`
	Item       string    `json:"item"` // filename or volume_id
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	ErrorClass string    `json:"error_class,omitempty"`
	Error      string    `json:"error,omitempty"`
	BytesMoved int64     `json:"bytes_moved,omitempty"`
	Retries    int       `json:"retries,omitempty"`
}

// Logger handles per-item processing logs, separate from the operational
// logger returned by Op(). It writes a human-readable line to the console
// and, if configured, a JSON line per entry to a file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default item logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file, replacing any previously open file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
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

// Log writes an item log entry.
func (l *Logger) Log(entry *ItemLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		retry := ""
		if entry.Retries > 0 {
			retry = fmt.Sprintf(" [retry:%d]", entry.Retries)
		}
		fmt.Printf("[%s] %s %s %s %dms%s\n",
			entry.Stage, status, entry.Radar, entry.Item, entry.DurationMs, retry)
		if entry.Error != "" {
			fmt.Printf("[%s]   error(%s): %s\n", entry.Stage, entry.ErrorClass, entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
