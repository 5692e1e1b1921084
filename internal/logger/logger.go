package logger

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu           sync.RWMutex
	currentLevel = INFO
	sink         = stdr.New(log.New(os.Stdout, "", log.Ldate|log.Ltime))
)

// ParseLevel converts a level name ("debug", "info", "warn", "error").
func ParseLevel(name string) (LogLevel, error) {
	switch name {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO", "":
		return INFO, nil
	case "warn", "WARN", "warning":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
	if level <= DEBUG {
		stdr.SetVerbosity(1)
	} else {
		stdr.SetVerbosity(0)
	}
}

// SetLogger replaces the sink every helper writes to.
func SetLogger(l logr.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sink = l
}

// Logger returns the current sink, for packages that log structured values.
func Logger() logr.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return sink
}

func enabled(level LogLevel) (logr.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return sink, currentLevel <= level
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	if l, ok := enabled(DEBUG); ok {
		l.V(1).Info(fmt.Sprintf(format, args...))
	}
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	if l, ok := enabled(INFO); ok {
		l.Info(fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if l, ok := enabled(WARN); ok {
		l.Info(fmt.Sprintf(format, args...), "level", "warn")
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if l, ok := enabled(ERROR); ok {
		l.Error(nil, fmt.Sprintf(format, args...))
	}
}

// DebugEnabled reports whether Debug messages are emitted
func DebugEnabled() bool {
	_, ok := enabled(DEBUG)
	return ok
}
