// Package checkout keeps a sparse, pinned clone of a remote repository.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner/process"
)

// Options describes the checkout to maintain.
type Options struct {
	URL         string   `yaml:"url" mapstructure:"url"`
	Dir         string   `yaml:"dir" mapstructure:"dir"`
	SparsePaths []string `yaml:"sparse_paths" mapstructure:"sparse_paths"`
	Ref         string   `yaml:"ref" mapstructure:"ref"`
	GitBinary   string   `yaml:"git_binary,omitempty" mapstructure:"git_binary"`
}

// DefaultOptions checks out the docker directory of the supabase repository.
func DefaultOptions() Options {
	return Options{
		URL:         "https://github.com/supabase/supabase.git",
		Dir:         "supabase",
		SparsePaths: []string{"docker"},
		Ref:         "master",
		GitBinary:   "git",
	}
}

// Action reports what Ensure did.
type Action string

const (
	ActionCloned  Action = "cloned"
	ActionUpdated Action = "updated"
)

// Manager runs git against a checkout directory. Every command is scoped
// with `git -C <dir>`; the process working directory is never changed.
type Manager struct {
	exec    process.Executor
	workDir string
	logger  log.Logger
}

// NewManager creates a Manager. Relative checkout dirs resolve against workDir.
func NewManager(exec process.Executor, workDir string, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Manager{exec: exec, workDir: workDir, logger: logger.WithComponent("checkout")}
}

// Path returns the resolved checkout directory.
func (m *Manager) Path(opts Options) string {
	if filepath.IsAbs(opts.Dir) {
		return opts.Dir
	}
	return filepath.Join(m.workDir, opts.Dir)
}

// Exists reports whether the checkout directory is present.
func (m *Manager) Exists(opts Options) bool {
	info, err := os.Stat(m.Path(opts))
	return err == nil && info.IsDir()
}

// Ensure clones the repository restricted to the sparse paths when the
// directory is absent, and pulls in place otherwise.
func (m *Manager) Ensure(ctx context.Context, opts Options) (Action, error) {
	if err := validate(opts); err != nil {
		return "", err
	}
	dir := m.Path(opts)
	git := opts.GitBinary
	if git == "" {
		git = "git"
	}

	if m.Exists(opts) {
		m.logger.Info("Checkout exists, updating", log.Str("dir", dir))
		if err := m.run(ctx, git, "-C", dir, "pull"); err != nil {
			return "", fmt.Errorf("failed to update %s: %w", dir, err)
		}
		return ActionUpdated, nil
	}

	m.logger.Info("Cloning repository", log.Str("url", opts.URL), log.Strs("sparse", opts.SparsePaths))
	steps := [][]string{
		{"clone", "--filter=blob:none", "--no-checkout", opts.URL, dir},
		{"-C", dir, "sparse-checkout", "init", "--cone"},
		append([]string{"-C", dir, "sparse-checkout", "set"}, opts.SparsePaths...),
		{"-C", dir, "checkout", opts.Ref},
	}
	for _, args := range steps {
		if err := m.run(ctx, git, args...); err != nil {
			return "", fmt.Errorf("failed to clone %s: %w", opts.URL, err)
		}
	}
	return ActionCloned, nil
}

func (m *Manager) run(ctx context.Context, git string, args ...string) error {
	return m.exec.Run(ctx, process.Command{Name: git, Args: args, Dir: m.workDir})
}

func validate(opts Options) error {
	switch {
	case opts.URL == "":
		return errors.New("checkout url is required")
	case opts.Dir == "":
		return errors.New("checkout dir is required")
	case len(opts.SparsePaths) == 0:
		return errors.New("at least one sparse path is required")
	case opts.Ref == "":
		return errors.New("checkout ref is required")
	}
	return nil
}
