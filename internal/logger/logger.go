// Package logger provides the leveled logger used by the calibration and
// extraction packages.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel orders log output by severity.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

var logLevelPrefix = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
}

// ILogger is implemented by every logger in this package.
type ILogger interface {
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warnf(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// ParseLevel maps a level name to a LogLevel. Unknown names map to LogInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	default:
		return LogInfo
	}
}

func (l LogLevel) String() string {
	if p, ok := logLevelPrefix[l]; ok {
		return strings.ToLower(p)
	}
	return "info"
}

// StdErrLogger writes through the standard log package, which prints to
// stderr unless redirected.
type StdErrLogger struct {
	logLevel LogLevel
}

// NewStdErrLogger returns a logger that drops messages below level.
func NewStdErrLogger(level LogLevel) *StdErrLogger {
	return &StdErrLogger{logLevel: level}
}

func (l *StdErrLogger) printf(level LogLevel, format string, a ...interface{}) {
	if level < l.logLevel {
		return
	}
	log.Println(logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...))
}

func (l *StdErrLogger) Debugf(format string, a ...interface{}) { l.printf(LogDebug, format, a...) }
func (l *StdErrLogger) Infof(format string, a ...interface{})  { l.printf(LogInfo, format, a...) }
func (l *StdErrLogger) Warnf(format string, a ...interface{})  { l.printf(LogWarn, format, a...) }
func (l *StdErrLogger) Errorf(format string, a ...interface{}) { l.printf(LogError, format, a...) }

// SetLogLevel changes the minimum level written.
func (l *StdErrLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}

// GetLogLevel returns the minimum level written.
func (l *StdErrLogger) GetLogLevel() LogLevel {
	return l.logLevel
}

// NullLogger discards everything. Used as the default and in tests.
type NullLogger struct{}

func (NullLogger) Debugf(format string, a ...interface{}) {}
func (NullLogger) Infof(format string, a ...interface{})  {}
func (NullLogger) Warnf(format string, a ...interface{})  {}
func (NullLogger) Errorf(format string, a ...interface{}) {}
