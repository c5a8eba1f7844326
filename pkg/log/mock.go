package log

import (
	"fmt"
	"strings"
	"sync"
)

// TestEntry is an entry captured by TestLogger.
type TestEntry struct {
	Level   Level
	Message string
	Fields  []Field
}

// TestLogger captures entries in memory for assertions in tests.
type TestLogger struct {
	sink   *testSink
	fields []Field
	level  Level
}

type testSink struct {
	mu      sync.Mutex
	entries []TestEntry
}

// NewTestLogger creates a TestLogger at DEBUG level. Child loggers created
// with With and friends share the same entry buffer.
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}, level: DebugLevel}
}

// GetEntries returns a copy of the captured entries.
func (l *TestLogger) GetEntries() []TestEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]TestEntry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

func (l *TestLogger) record(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	l.sink.mu.Lock()
	l.sink.entries = append(l.sink.entries, TestEntry{Level: level, Message: msg, Fields: all})
	l.sink.mu.Unlock()
}

func (l *TestLogger) Debug(msg string, fields ...Field) { l.record(DebugLevel, msg, fields) }
func (l *TestLogger) Info(msg string, fields ...Field)  { l.record(InfoLevel, msg, fields) }
func (l *TestLogger) Warn(msg string, fields ...Field)  { l.record(WarnLevel, msg, fields) }
func (l *TestLogger) Error(msg string, fields ...Field) { l.record(ErrorLevel, msg, fields) }
func (l *TestLogger) Fatal(msg string, fields ...Field) { l.record(FatalLevel, msg, fields) }

func (l *TestLogger) Debugf(msg string, args ...interface{}) {
	l.record(DebugLevel, msg, argFields(args))
}
func (l *TestLogger) Infof(msg string, args ...interface{}) {
	l.record(InfoLevel, msg, argFields(args))
}
func (l *TestLogger) Warnf(msg string, args ...interface{}) {
	l.record(WarnLevel, msg, argFields(args))
}
func (l *TestLogger) Errorf(msg string, args ...interface{}) {
	l.record(ErrorLevel, msg, argFields(args))
}

func argFields(args []interface{}) []Field {
	fields := make([]Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields = append(fields, Any(fmt.Sprint(args[i]), args[i+1]))
	}
	return fields
}

// With returns a child logger sharing the entry buffer.
func (l *TestLogger) With(fields ...Field) Logger {
	child := &TestLogger{sink: l.sink, level: l.level}
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return child
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.With(Any(key, value))
}

func (l *TestLogger) WithFields(fields Fields) Logger {
	extra := make([]Field, 0, len(fields))
	for k, v := range fields {
		extra = append(extra, Any(k, v))
	}
	return l.With(extra...)
}

func (l *TestLogger) WithError(err error) Logger       { return l.With(Err(err)) }
func (l *TestLogger) WithComponent(name string) Logger { return l.With(Component(name)) }
func (l *TestLogger) SetLevel(level Level)             { l.level = level }
func (l *TestLogger) GetLevel() Level                  { return l.level }

// AssertLogged reports whether an entry at level contains the message fragment.
func (l *TestLogger) AssertLogged(level Level, contains string) bool {
	for _, e := range l.GetEntries() {
		if e.Level == level && strings.Contains(e.Message, contains) {
			return true
		}
	}
	return false
}

// CountAt returns how many entries were captured at level.
func (l *TestLogger) CountAt(level Level) int {
	n := 0
	for _, e := range l.GetEntries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
