package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes entries to stdout or stderr, or to custom writers.
type ConsoleOutput struct {
	mu            sync.Mutex
	useStderr     bool
	errorToStderr bool
	writer        io.Writer
	errorWriter   io.Writer
}

// ConsoleOutputOption configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// WithStderr sends every entry to stderr.
func WithStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) { o.useStderr = true }
}

// WithCustomWriter sends entries to w.
func WithCustomWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) { o.writer = w }
}

// WithCustomErrorWriter sends ERROR and FATAL entries to w.
func WithCustomErrorWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorWriter = w
		o.errorToStderr = true
	}
}

// NewConsoleOutput creates a console output. Errors go to stderr by default.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{errorToStderr: true}
	for _, option := range options {
		option(o)
	}
	return o
}

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var w io.Writer = os.Stdout
	switch {
	case o.writer != nil:
		w = o.writer
	case o.useStderr:
		w = os.Stderr
	}
	if o.errorToStderr && entry.Level >= ErrorLevel {
		if o.errorWriter != nil {
			w = o.errorWriter
		} else if o.writer == nil {
			w = os.Stderr
		}
	}

	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
