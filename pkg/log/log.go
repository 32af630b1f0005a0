// Package log provides structured logging for unisql.
//
// The logging system supports multiple categories:
//   - System: engine lifecycle, configuration, resource management
//   - Pool: connection checkout/return, pool sizing
//   - Execution: statement execution, batch summaries
//   - Introspection: catalog queries, schema snapshots
//   - Audit: statement text logging (never credentials)
//
// Each category can be configured independently with its own level
// and output.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging severity level.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff // Disable logging entirely
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level string.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR", "ERR":
		return LevelError, nil
	case "OFF", "NONE":
		return LevelOff, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Category identifies the logging category.
type Category string

const (
	CategorySystem        Category = "system"        // Engine lifecycle, config, resources
	CategoryPool          Category = "pool"          // Connection checkout/return
	CategoryExecution     Category = "execution"     // Statement/batch execution
	CategoryIntrospection Category = "introspection" // Catalog queries
	CategoryAudit         Category = "audit"         // Statement text, security events
)

var allCategories = []Category{
	CategorySystem,
	CategoryPool,
	CategoryExecution,
	CategoryIntrospection,
	CategoryAudit,
}

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota // Human-readable text
	FormatJSON               // Structured JSON
)

// Entry represents a single log entry.
type Entry struct {
	Time     time.Time              `json:"time"`
	Level    string                 `json:"level"`
	Category Category               `json:"category"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	ErrorStr string                 `json:"error,omitempty"`
}

// Logger is the main logging interface.
type Logger struct {
	mu sync.RWMutex

	// Per-category configuration
	levels  map[Category]Level
	outputs map[Category]io.Writer

	format Format
}

// Config holds logger configuration.
type Config struct {
	// Default level for all categories
	DefaultLevel Level

	// Per-category level overrides
	CategoryLevels map[Category]Level

	// Output configuration
	Output io.Writer // Default output (os.Stderr if nil)
	Format Format
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLevel: LevelInfo,
		Output:       os.Stderr,
		Format:       FormatText,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	l := &Logger{
		levels:  make(map[Category]Level),
		outputs: make(map[Category]io.Writer),
		format:  cfg.Format,
	}

	for _, cat := range allCategories {
		l.levels[cat] = cfg.DefaultLevel
		l.outputs[cat] = cfg.Output
	}

	for cat, level := range cfg.CategoryLevels {
		l.levels[cat] = level
	}

	return l
}

// Discard returns a logger that drops everything. Useful for tests and
// for library consumers that bring their own logging.
func Discard() *Logger {
	return New(Config{DefaultLevel: LevelOff, Output: io.Discard})
}

// SetLevel sets the log level for a category.
func (l *Logger) SetLevel(cat Category, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[cat] = level
}

// SetOutput sets the output writer for a category.
func (l *Logger) SetOutput(cat Category, w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs[cat] = w
}

// Debug logs at debug level.
func (l *Logger) Debug(cat Category, msg string, fields ...interface{}) {
	l.log(LevelDebug, cat, msg, nil, fields...)
}

// Info logs at info level.
func (l *Logger) Info(cat Category, msg string, fields ...interface{}) {
	l.log(LevelInfo, cat, msg, nil, fields...)
}

// Warn logs at warn level.
func (l *Logger) Warn(cat Category, msg string, fields ...interface{}) {
	l.log(LevelWarn, cat, msg, nil, fields...)
}

// Error logs at error level with an associated error.
func (l *Logger) Error(cat Category, msg string, err error, fields ...interface{}) {
	l.log(LevelError, cat, msg, err, fields...)
}

func (l *Logger) log(level Level, cat Category, msg string, err error, fields ...interface{}) {
	l.mu.RLock()
	catLevel, ok := l.levels[cat]
	out := l.outputs[cat]
	format := l.format
	l.mu.RUnlock()

	if !ok || level < catLevel || out == nil {
		return
	}

	entry := Entry{
		Time:     time.Now(),
		Level:    level.String(),
		Category: cat,
		Message:  msg,
		Fields:   pairFields(fields),
	}
	if err != nil {
		entry.ErrorStr = err.Error()
	}

	var line string
	switch format {
	case FormatJSON:
		b, jerr := json.Marshal(entry)
		if jerr != nil {
			return
		}
		line = string(b) + "\n"
	default:
		line = formatText(entry)
	}

	l.mu.Lock()
	fmt.Fprint(out, line)
	l.mu.Unlock()
}

// pairFields turns a variadic key/value list into a map. An odd
// trailing value is stored under "extra".
func pairFields(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		m[key] = fields[i+1]
	}
	if len(fields)%2 != 0 {
		m["extra"] = fields[len(fields)-1]
	}
	return m
}

func formatText(e Entry) string {
	var buf strings.Builder
	buf.WriteString(e.Time.Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(e.Level)
	buf.WriteString("] ")
	buf.WriteString(string(e.Category))
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	for k, v := range e.Fields {
		fmt.Fprintf(&buf, " %s=%v", k, v)
	}
	if e.ErrorStr != "" {
		buf.WriteString(" error=")
		buf.WriteString(e.ErrorStr)
	}
	buf.WriteString("\n")
	return buf.String()
}
