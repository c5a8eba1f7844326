package log

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// BaseLogger is the default Logger implementation.
type BaseLogger struct {
	level     Level
	fields    Fields
	formatter Formatter
	outputs   []Output
	hooks     []Hook
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.logFields(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.logFields(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.logFields(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.logFields(ErrorLevel, msg, fields) }

// Fatal logs at FATAL and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.logFields(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.logArgs(DebugLevel, msg, args) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.logArgs(InfoLevel, msg, args) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.logArgs(WarnLevel, msg, args) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.logArgs(ErrorLevel, msg, args) }

// With returns a child logger carrying the given fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	extra := make(Fields, len(fields))
	for _, f := range fields {
		extra[f.Key] = f.Value
	}
	return l.WithFields(extra)
}

// WithField returns a child logger carrying one extra field.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a child logger carrying the given fields.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	child := &BaseLogger{
		level:     l.level,
		formatter: l.formatter,
		outputs:   l.outputs,
		hooks:     l.hooks,
		fields:    make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// WithError attaches err as the "error" field.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// WithComponent tags entries with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }
func (l *BaseLogger) GetLevel() Level      { return l.level }

func (l *BaseLogger) logArgs(level Level, msg string, args []interface{}) {
	if level < l.level {
		return
	}
	fields := make(Fields, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields[fmt.Sprintf("arg%d", i)] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		fields[key] = args[i+1]
	}
	l.write(level, msg, fields)
}

func (l *BaseLogger) logFields(level Level, msg string, extra []Field) {
	if level < l.level {
		return
	}
	fields := make(Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for _, f := range extra {
		fields[f.Key] = f.Value
	}
	l.write(level, msg, fields)
}

func (l *BaseLogger) write(level Level, msg string, fields Fields) {
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(3); ok {
		parts := strings.Split(file, "/")
		if len(parts) > 2 {
			file = strings.Join(parts[len(parts)-2:], "/")
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    fields,
		Timestamp: time.Now(),
		Caller:    caller,
	}

	for _, hook := range l.hooks {
		if !firesAt(hook, level) {
			continue
		}
		if err := hook.Fire(entry); err != nil {
			fmt.Fprintf(os.Stderr, "log hook failed: %v\n", err)
		}
	}

	formatted, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log format failed: %v\n", err)
		return
	}
	for _, out := range l.outputs {
		if err := out.Write(entry, formatted); err != nil {
			fmt.Fprintf(os.Stderr, "log output failed: %v\n", err)
		}
	}
}

func firesAt(hook Hook, level Level) bool {
	for _, l := range hook.Levels() {
		if l == level {
			return true
		}
	}
	return false
}
