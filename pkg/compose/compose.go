// Package compose drives the docker compose CLI for a single project.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner/process"
)

// ErrComposeUnavailable is returned when neither `docker compose` nor
// `docker-compose` can be run.
var ErrComposeUnavailable = errors.New("docker compose unavailable")

// UpOptions selects what a single `up -d` brings up.
type UpOptions struct {
	Files    []string
	Profiles []string
	Services []string
	EnvFile  string
}

// DownOptions selects what `down` tears down.
type DownOptions struct {
	Files         []string
	Volumes       bool
	RemoveOrphans bool
}

// Client invokes compose for one project.
type Client struct {
	exec    process.Executor
	project string
	workDir string
	binary  string
	logger  log.Logger

	base []string
}

// Option configures a Client.
type Option func(*Client)

// WithBinary pins the compose entry point, either "docker" (plugin) or a
// path to a standalone docker-compose.
func WithBinary(binary string) Option {
	return func(c *Client) { c.binary = binary }
}

// WithLogger sets the client logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a compose client for project, running in workDir.
func NewClient(exec process.Executor, project, workDir string, opts ...Option) *Client {
	c := &Client{exec: exec, project: project, workDir: workDir, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("compose")
	return c
}

// Project returns the compose project name.
func (c *Client) Project() string { return c.project }

// resolve picks the compose entry point once: the docker CLI plugin when it
// answers `compose version`, otherwise the standalone binary.
func (c *Client) resolve(ctx context.Context) ([]string, error) {
	if c.base != nil {
		return c.base, nil
	}
	switch {
	case c.binary != "" && strings.HasSuffix(c.binary, "docker-compose"):
		c.base = []string{c.binary}
	case c.binary != "":
		c.base = []string{c.binary, "compose"}
	default:
		err := c.exec.Run(ctx, process.Command{Name: "docker", Args: []string{"compose", "version"}, Dir: c.workDir})
		if err == nil {
			c.base = []string{"docker", "compose"}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else if process.Available("docker-compose") {
			c.logger.Debug("docker compose plugin unavailable, using docker-compose", log.Err(err))
			c.base = []string{"docker-compose"}
		} else {
			return nil, fmt.Errorf("%w: %v", ErrComposeUnavailable, err)
		}
	}
	return c.base, nil
}

func (c *Client) command(ctx context.Context, args []string) (process.Command, error) {
	base, err := c.resolve(ctx)
	if err != nil {
		return process.Command{}, err
	}
	full := append(append([]string{}, base[1:]...), args...)
	return process.Command{Name: base[0], Args: full, Dir: c.workDir}, nil
}

// UpArgs renders the arguments of an `up -d` invocation after the entry point.
func (c *Client) UpArgs(opts UpOptions) []string {
	args := []string{"-p", c.project}
	for _, p := range opts.Profiles {
		args = append(args, "--profile", p)
	}
	for _, f := range opts.Files {
		args = append(args, "-f", f)
	}
	if opts.EnvFile != "" {
		args = append(args, "--env-file", opts.EnvFile)
	}
	args = append(args, "up", "-d")
	return append(args, opts.Services...)
}

// DownArgs renders the arguments of a `down` invocation after the entry point.
func (c *Client) DownArgs(opts DownOptions) []string {
	args := []string{"-p", c.project}
	for _, f := range opts.Files {
		args = append(args, "-f", f)
	}
	args = append(args, "down")
	if opts.Volumes {
		args = append(args, "-v")
	}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	return args
}

// Up starts services detached.
func (c *Client) Up(ctx context.Context, opts UpOptions) error {
	cmd, err := c.command(ctx, c.UpArgs(opts))
	if err != nil {
		return err
	}
	c.logger.Info("Starting services", log.Strs("files", opts.Files), log.Strs("profiles", opts.Profiles), log.Strs("services", opts.Services))
	return c.exec.Run(ctx, cmd)
}

// Down stops and removes the project's containers.
func (c *Client) Down(ctx context.Context, opts DownOptions) error {
	cmd, err := c.command(ctx, c.DownArgs(opts))
	if err != nil {
		return err
	}
	c.logger.Info("Stopping services", log.Str("project", c.project))
	return c.exec.Run(ctx, cmd)
}
