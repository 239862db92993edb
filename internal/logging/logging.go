package logging

import (
	"encoding/json"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Level represents log severity level.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// severityNumbers maps OTEL severity text to OTEL severity number.
// See https://opentelemetry.io/docs/specs/otel/logs/data-model/#severity-fields
var severityNumbers = map[Level]int{
	LevelDebug: 5,  // DEBUG
	LevelInfo:  9,  // INFO
	LevelWarn:  13, // WARN
	LevelError: 17, // ERROR
	LevelFatal: 21, // FATAL
}

// ParseLevel converts a level name to a Level. Unknown names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

var logMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "datasplit_log_messages_total",
	Help: "Log messages emitted by level and component, including suppressed ones",
}, []string{"level", "component"})

func init() {
	prometheus.MustRegister(logMessagesTotal)
}

// Logger provides JSON structured logging in OTEL-compatible format.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	resource map[string]string
	minLevel Level
}

// LogEntry represents a single log entry in OTEL-compatible JSON format.
type LogEntry struct {
	Timestamp      string                 `json:"Timestamp"`
	SeverityText   string                 `json:"SeverityText"`
	SeverityNumber int                    `json:"SeverityNumber"`
	Body           string                 `json:"Body"`
	Attributes     map[string]interface{} `json:"Attributes,omitempty"`
	Resource       map[string]string      `json:"Resource,omitempty"`
}

var defaultLogger = &Logger{output: os.Stderr, minLevel: LevelInfo}

// SetOutput sets the output writer for the default logger. A nil writer
// discards output.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	defaultLogger.output = w
}

// SetResource sets the OTEL resource attributes (service.name, run.id, etc.)
// for the default logger. Should be called once at startup.
func SetResource(resource map[string]string) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.resource = resource
}

// SetLevel sets the minimum level written to the output. Messages below it
// are still counted in datasplit_log_messages_total.
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.minLevel = level
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if defaultLogger.minLevel == "" {
		return LevelInfo
	}
	return defaultLogger.minLevel
}

// Enabled reports whether messages at level would be written.
func Enabled(level Level) bool {
	return severityNumbers[level] >= severityNumbers[GetLevel()]
}

// log writes a structured log entry in OTEL-compatible JSON format.
func (l *Logger) log(level Level, msg string, attrs map[string]interface{}) {
	logMessagesTotal.WithLabelValues(string(level), component(attrs)).Inc()

	l.mu.Lock()
	minLevel := l.minLevel
	if minLevel == "" {
		minLevel = LevelInfo
	}
	if severityNumbers[level] < severityNumbers[minLevel] {
		l.mu.Unlock()
		return
	}
	entry := LogEntry{
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		SeverityText:   string(level),
		SeverityNumber: severityNumbers[level],
		Body:           msg,
		Attributes:     attrs,
		Resource:       l.resource,
	}
	data, _ := json.Marshal(entry)
	_, _ = l.output.Write(append(data, '\n'))
	l.mu.Unlock()
}

// component returns the explicit "component" attribute, or the name of the
// package that called into the logger.
func component(attrs map[string]interface{}) string {
	if c, ok := attrs["component"].(string); ok && c != "" {
		return c
	}
	// component <- log <- Info/Warn/... <- caller
	pcs := make([]uintptr, 1)
	if runtime.Callers(4, pcs) == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	name := frame.Function
	if name == "" {
		return "unknown"
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return name
}

func fields(f []map[string]interface{}) map[string]interface{} {
	if len(f) > 0 {
		return f[0]
	}
	return nil
}

// Debug logs a debug level message.
func Debug(msg string, f ...map[string]interface{}) {
	defaultLogger.log(LevelDebug, msg, fields(f))
}

// Info logs an info level message.
func Info(msg string, f ...map[string]interface{}) {
	defaultLogger.log(LevelInfo, msg, fields(f))
}

// Warn logs a warning level message.
func Warn(msg string, f ...map[string]interface{}) {
	defaultLogger.log(LevelWarn, msg, fields(f))
}

// Error logs an error level message.
func Error(msg string, f ...map[string]interface{}) {
	defaultLogger.log(LevelError, msg, fields(f))
}

// F is a helper to create fields map.
func F(keyvals ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(keyvals)-1; i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields[key] = keyvals[i+1]
		}
	}
	return fields
}
