// Package loggingtest provides a logging.Logger that records messages for assertions.
package loggingtest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/core-tools/hsu-watchad/pkg/logging"
)

type Entry struct {
	Level   int
	Message string
}

// Recorder keeps every formatted message in order.
type Recorder struct {
	mutex   sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LogLevelf(level int, format string, args ...interface{}) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Debugf(format string, args ...interface{}) {
	r.LogLevelf(logging.LogLevelDebug, format, args...)
}

func (r *Recorder) Infof(format string, args ...interface{}) {
	r.LogLevelf(logging.LogLevelInfo, format, args...)
}

func (r *Recorder) Warnf(format string, args ...interface{}) {
	r.LogLevelf(logging.LogLevelWarn, format, args...)
}

func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.LogLevelf(logging.LogLevelError, format, args...)
}

func (r *Recorder) Entries() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	result := make([]Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Messages returns the messages logged at level.
func (r *Recorder) Messages(level int) []string {
	var result []string
	for _, entry := range r.Entries() {
		if entry.Level == level {
			result = append(result, entry.Message)
		}
	}
	return result
}

// Contains reports whether any message at level contains substr.
func (r *Recorder) Contains(level int, substr string) bool {
	for _, msg := range r.Messages(level) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
