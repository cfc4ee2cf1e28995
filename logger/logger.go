// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a LogLevel.
// Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	zl       zerolog.Logger
	file     *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
}

// ensureInitialized creates a default console logger if one doesn't exist
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = newLogger(consoleWriter(os.Stdout), nil, DEBUG)
		}
	})
}

func newLogger(w io.Writer, file *os.File, level LogLevel) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl, file: file, minLevel: level}
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console (human readable).
// If console is false, logs only to file (JSON lines).
func Init(filename string, console bool) error {
	once.Do(func() {}) // an explicit Init replaces the lazy default

	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
	}

	var writers []io.Writer
	var file *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	if console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if len(writers) == 0 {
		return fmt.Errorf("no output destination specified")
	}

	level := DEBUG
	if defaultLogger != nil {
		level = defaultLogger.minLevel
	}
	defaultLogger = newLogger(zerolog.MultiLevelWriter(writers...), file, level)
	return nil
}

// SetOutput points the logger at an arbitrary writer as JSON lines. Tests use
// it to capture output.
func SetOutput(w io.Writer) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(w, nil, defaultLogger.minLevel)
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
// Messages below this level will not be logged
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
	defaultLogger.zl = defaultLogger.zl.Level(level.zerolog())
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
		defaultLogger.zl = newLogger(consoleWriter(os.Stdout), nil, defaultLogger.minLevel).zl
	}
}

func current() zerolog.Logger {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger.zl
}

// Zerolog exposes the underlying logger, e.g. for HTTP access logging.
func Zerolog() zerolog.Logger {
	return current()
}

// With returns a child logger carrying the given key/value pairs on every entry.
func With(fields map[string]any) zerolog.Logger {
	return current().With().Fields(fields).Logger()
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	zl := current()
	zl.Debug().Msg(fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	zl := current()
	zl.Debug().Msgf(format, v...)
}

// Info logs an info message
func Info(v ...interface{}) {
	zl := current()
	zl.Info().Msg(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	zl := current()
	zl.Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	zl := current()
	zl.Warn().Msg(fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	zl := current()
	zl.Warn().Msgf(format, v...)
}

// Error logs an error message
func Error(v ...interface{}) {
	zl := current()
	zl.Error().Msg(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	zl := current()
	zl.Error().Msgf(format, v...)
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	zl := current()
	zl.Error().Msg(fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	zl := current()
	zl.Error().Msgf(format, v...)
	os.Exit(1)
}
