package logging

import (
	"fmt"
	"strings"
)

const (
	LogLevelDebug = 0
	LogLevelInfo  = 1
	LogLevelWarn  = 2
	LogLevelError = 3
)

// Logger is the leveled logging capability handed to every component.
type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type LogLevelFunc func(level int, format string, args ...interface{})
type LogFunc func(format string, args ...interface{})

type LogFuncs struct {
	LogLevelf LogLevelFunc
	Debugf    LogFunc
	Infof     LogFunc
	Warnf     LogFunc
	Errorf    LogFunc
}

type logger struct {
	prefix string
	funcs  LogFuncs
}

// NewLogger wraps a set of backend functions and prepends prefix to every message.
func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &logger{
		prefix: prefix,
		funcs:  funcs,
	}
}

// NewModuleLogger prefixes every message with the component name.
func NewModuleLogger(module string, funcs LogFuncs) Logger {
	return NewLogger(fmt.Sprintf("module: %s , ", module), funcs)
}

// NewNopLogger returns a Logger that drops everything.
func NewNopLogger() Logger {
	return &logger{}
}

func (l *logger) logf(level int, msg string, args ...interface{}) {
	if l.prefix != "" {
		msg = l.prefix + msg
	}
	if l.funcs.LogLevelf != nil {
		l.funcs.LogLevelf(level, msg, args...)
		return
	}
	switch level {
	case LogLevelDebug:
		if l.funcs.Debugf != nil {
			l.funcs.Debugf(msg, args...)
		}
	case LogLevelInfo:
		if l.funcs.Infof != nil {
			l.funcs.Infof(msg, args...)
		}
	case LogLevelWarn:
		if l.funcs.Warnf != nil {
			l.funcs.Warnf(msg, args...)
		}
	case LogLevelError:
		if l.funcs.Errorf != nil {
			l.funcs.Errorf(msg, args...)
		}
	}
}

func (l *logger) LogLevelf(level int, format string, args ...interface{}) {
	l.logf(level, format, args...)
}

func (l *logger) Debugf(msg string, args ...interface{}) {
	l.logf(LogLevelDebug, msg, args...)
}

func (l *logger) Infof(msg string, args ...interface{}) {
	l.logf(LogLevelInfo, msg, args...)
}

func (l *logger) Warnf(msg string, args ...interface{}) {
	l.logf(LogLevelWarn, msg, args...)
}

func (l *logger) Errorf(msg string, args ...interface{}) {
	l.logf(LogLevelError, msg, args...)
}

const redacted = "***"

// RedactFuncs formats each message and replaces every occurrence of the
// secrets before it reaches the backend. Empty secrets are ignored.
func RedactFuncs(funcs LogFuncs, secrets ...string) LogFuncs {
	var pairs []string
	for _, secret := range secrets {
		if secret != "" {
			pairs = append(pairs, secret, redacted)
		}
	}
	if len(pairs) == 0 {
		return funcs
	}
	replacer := strings.NewReplacer(pairs...)

	wrap := func(next LogFunc) LogFunc {
		if next == nil {
			return nil
		}
		return func(format string, args ...interface{}) {
			next("%s", replacer.Replace(fmt.Sprintf(format, args...)))
		}
	}

	result := LogFuncs{
		Debugf: wrap(funcs.Debugf),
		Infof:  wrap(funcs.Infof),
		Warnf:  wrap(funcs.Warnf),
		Errorf: wrap(funcs.Errorf),
	}
	if funcs.LogLevelf != nil {
		next := funcs.LogLevelf
		result.LogLevelf = func(level int, format string, args ...interface{}) {
			next(level, "%s", replacer.Replace(fmt.Sprintf(format, args...)))
		}
	}
	return result
}
