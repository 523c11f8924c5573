package app

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes one JSON object per line. The TUI owns stdout, so the
// default sink is a log file.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
}

type LogEvent struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// NewFileLogger opens (or creates) the log file at path. An empty path or an
// open failure yields a logger that discards everything.
func NewFileLogger(path string) *Logger {
	if path == "" {
		return NewLogger(io.Discard)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return NewLogger(io.Discard)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return NewLogger(io.Discard)
	}
	return NewLogger(f)
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.write("info", message, fields)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.write("warn", message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]interface{}) {
	if l == nil || l.out == nil {
		return
	}
	evt := LogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}
	payload, _ := json.Marshal(evt)
	payload = append(payload, '\n')
	l.mu.Lock()
	_, _ = l.out.Write(payload)
	l.mu.Unlock()
}
