package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rivo/tview"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogMessage represents a single log entry
type LogMessage struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

// LogManager keeps recent messages for the log pane. It is also an
// io.Writer for zerolog JSON lines, so library logs land in the pane.
type LogManager struct {
	textView    *tview.TextView
	messages    []LogMessage
	maxMessages int
	mu          sync.Mutex
}

// NewLogManager creates a new log manager
func NewLogManager(maxMessages int) *LogManager {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxMessages)
	textView.SetBorder(true).SetTitle(" Logs ")

	return &LogManager{
		textView:    textView,
		messages:    make([]LogMessage, 0, maxMessages),
		maxMessages: maxMessages,
	}
}

// GetView returns the tview component
func (lm *LogManager) GetView() tview.Primitive {
	return lm.textView
}

// AddLog adds a log message with the specified level
func (lm *LogManager) AddLog(level LogLevel, format string, args ...interface{}) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.messages = append(lm.messages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
	if len(lm.messages) > lm.maxMessages {
		lm.messages = lm.messages[len(lm.messages)-lm.maxMessages:]
	}
}

// Info logs an info message
func (lm *LogManager) Info(format string, args ...interface{}) {
	lm.AddLog(LogLevelInfo, format, args...)
}

// Warn logs a warning message
func (lm *LogManager) Warn(format string, args ...interface{}) {
	lm.AddLog(LogLevelWarn, format, args...)
}

// Write accepts one zerolog JSON line.
func (lm *LogManager) Write(p []byte) (int, error) {
	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Error   string `json:"error"`
		Comp    string `json:"component"`
	}
	if err := json.Unmarshal(p, &entry); err != nil {
		lm.AddLog(LogLevelInfo, "%s", strings.TrimSpace(string(p)))
		return len(p), nil
	}

	msg := entry.Message
	if entry.Comp != "" {
		msg = entry.Comp + ": " + msg
	}
	if entry.Error != "" {
		msg += " (" + entry.Error + ")"
	}
	lm.AddLog(LogLevel(strings.ToUpper(entry.Level)), "%s", tview.Escape(msg))
	return len(p), nil
}

// Refresh redraws the pane. Call from the UI goroutine.
func (lm *LogManager) Refresh() {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.textView.Clear()
	for _, msg := range lm.messages {
		levelStr := fmt.Sprintf("[%s]%-5s[-]", colorForLevel(msg.Level), msg.Level)
		fmt.Fprintf(lm.textView, "[gray]%s[-] %s %s\n", msg.Time.Format("15:04:05"), levelStr, msg.Message)
	}
	lm.textView.ScrollToEnd()
}

// colorForLevel returns the tview color tag for a log level
func colorForLevel(level LogLevel) string {
	switch level {
	case LogLevelDebug:
		return "gray"
	case LogLevelWarn:
		return "yellow"
	case LogLevelError:
		return "red"
	default:
		return "white"
	}
}
