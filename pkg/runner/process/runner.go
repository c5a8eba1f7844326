// Package process runs the external tools the stack is driven through.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rzbill/localai/pkg/log"
)

// maxCapturedStderr bounds how much stderr is kept for error messages.
const maxCapturedStderr = 4096

// Command is a single external invocation. Dir scopes the process; the
// caller's working directory is never changed.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Executor runs commands to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExitError is returned when a command ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// IsExitError reports whether err carries a non-zero exit.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// ProcessRunner executes commands with os/exec.
type ProcessRunner struct {
	logger log.Logger
	stdout io.Writer
	stderr io.Writer
	env    []string
}

var _ Executor = (*ProcessRunner)(nil)

// ProcessOption is a function that configures a ProcessRunner
type ProcessOption func(*ProcessRunner)

// WithLogger sets the logger for the runner
func WithLogger(logger log.Logger) ProcessOption {
	return func(r *ProcessRunner) {
		r.logger = logger
	}
}

// WithOutput sets where child stdout and stderr are streamed.
func WithOutput(stdout, stderr io.Writer) ProcessOption {
	return func(r *ProcessRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnv appends variables to the inherited environment of every command.
func WithEnv(env ...string) ProcessOption {
	return func(r *ProcessRunner) {
		r.env = append(r.env, env...)
	}
}

// NewProcessRunner creates a new ProcessRunner with the given options
func NewProcessRunner(options ...ProcessOption) *ProcessRunner {
	r := &ProcessRunner{
		logger: log.GetDefaultLogger(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, option := range options {
		option(r)
	}
	r.logger = r.logger.WithComponent("process")
	return r
}

// Run streams the command's output and waits for it to exit.
func (r *ProcessRunner) Run(ctx context.Context, c Command) error {
	return r.run(ctx, c, r.stdout)
}

// Output runs the command and returns its stdout.
func (r *ProcessRunner) Output(ctx context.Context, c Command) ([]byte, error) {
	var out bytes.Buffer
	err := r.run(ctx, c, &out)
	return out.Bytes(), err
}

func (r *ProcessRunner) run(ctx context.Context, c Command, stdout io.Writer) error {
	path, err := Resolve(c.Name)
	if err != nil {
		return err
	}

	// #nosec G204 -- commands are assembled from configuration, not user shell input.
	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(append(os.Environ(), r.env...), c.Env...)

	stderr := &tailBuffer{max: maxCapturedStderr}
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(r.stderr, stderr)

	r.logger.Debug("Running command", log.Str("cmd", c.String()), log.Str("dir", c.Dir))
	start := time.Now()
	err = cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				Command:  c.String(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return fmt.Errorf("failed to run %s: %w", c.String(), err)
	}

	r.logger.Debug("Command completed", log.Str("cmd", c.Name), log.Duration("elapsed", time.Since(start)))
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
