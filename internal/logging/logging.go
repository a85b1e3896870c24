// Package logging is a small leveled wrapper around stderr output, in the
// style of the teacher's internal/output.Progress: a single writer plus a
// numeric gate, no structured-logging dependency.
package logging

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Level values match the source's log_level config option.
const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger writes level-gated messages to stderr with an elapsed-time
// prefix, mirroring Progress.Log's format.
type Logger struct {
	level int
	start time.Time
}

// New returns a Logger gated at level (0=error .. 3=debug).
func New(level int) *Logger {
	return &Logger{level: level, start: time.Now()}
}

// SetLevel changes the gate, used on configuration reload.
func (l *Logger) SetLevel(level int) {
	l.level = level
}

func (l *Logger) log(tag string, level int, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	elapsed := time.Since(l.start).Round(time.Millisecond)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", elapsed, tag, msg)
}

// Errorf logs at LevelError; always shown unless level is negative.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", LevelError, format, args...)
}

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", LevelWarn, format, args...)
}

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", LevelInfo, format, args...)
}

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", LevelDebug, format, args...)
}

// StdLogger returns a plain *log.Logger writing to the same stream, for
// handing to collaborators (Sampler, Actuator) built against the standard
// library logger rather than this package's leveled wrapper.
func (l *Logger) StdLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}
