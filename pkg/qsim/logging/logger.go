// Package logging provides the small structured-logging facade used
// across the simulation engine. It intentionally wraps the standard
// library logger instead of pulling in a third-party logging
// framework, following the same shape the rest of the stack uses for
// its own process-wide logging.
package logging

import (
	"fmt"
	"log"
	"os"
)

const (
	calldepth = 3
	lvlDebug  = "DEBUG"
	lvlInfo   = "INFO"
	lvlWarn   = "WARN"
	lvlError  = "ERROR"
	lvlFatal  = "FATAL"
)

// Logger is the interface the broker, the per-partition worker and the
// driver depend on. Tests can supply a no-op or a recording implementation.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug turns debug-level output on or off and returns the
	// resulting state.
	ToggleDebug(on bool) bool

	// With returns a child logger that prefixes every message with
	// name, e.g. a worker tagging its partition rank.
	With(name string) Logger
}

// StdLogger is the default Logger, backed by the standard library's
// *log.Logger writing to stderr.
type StdLogger struct {
	*log.Logger
	debug  bool
	prefix string
}

// New creates a StdLogger writing to os.Stderr.
func New() *StdLogger {
	return &StdLogger{
		Logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *StdLogger) level(lvl, message string) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", lvl, l.prefix, message)
	}
	return fmt.Sprintf("[%s] %s", lvl, message)
}

func (l *StdLogger) Debug(v ...interface{}) {
	if l.debug {
		l.Output(calldepth, l.level(lvlDebug, fmt.Sprint(v...)))
	}
}

func (l *StdLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.Output(calldepth, l.level(lvlDebug, fmt.Sprintf(format, v...)))
	}
}

func (l *StdLogger) Info(v ...interface{}) {
	l.Output(calldepth, l.level(lvlInfo, fmt.Sprint(v...)))
}

func (l *StdLogger) Infof(format string, v ...interface{}) {
	l.Output(calldepth, l.level(lvlInfo, fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Warn(v ...interface{}) {
	l.Output(calldepth, l.level(lvlWarn, fmt.Sprint(v...)))
}

func (l *StdLogger) Warnf(format string, v ...interface{}) {
	l.Output(calldepth, l.level(lvlWarn, fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Error(v ...interface{}) {
	l.Output(calldepth, l.level(lvlError, fmt.Sprint(v...)))
}

func (l *StdLogger) Errorf(format string, v ...interface{}) {
	l.Output(calldepth, l.level(lvlError, fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Fatal(v ...interface{}) {
	l.Output(calldepth, l.level(lvlFatal, fmt.Sprint(v...)))
	os.Exit(1)
}

func (l *StdLogger) Fatalf(format string, v ...interface{}) {
	l.Output(calldepth, l.level(lvlFatal, fmt.Sprintf(format, v...)))
	os.Exit(1)
}

func (l *StdLogger) ToggleDebug(on bool) bool {
	l.debug = on
	return l.debug
}

func (l *StdLogger) With(name string) Logger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &StdLogger{
		Logger: l.Logger,
		debug:  l.debug,
		prefix: prefix,
	}
}
