package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rzbill/localai/internal/config"
	"github.com/rzbill/localai/pkg/cli/format"
	"github.com/rzbill/localai/pkg/cli/prompt"
	"github.com/rzbill/localai/pkg/compose"
	"github.com/rzbill/localai/pkg/envfile"
	"github.com/rzbill/localai/pkg/journal"
	"github.com/rzbill/localai/pkg/lifecycle"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/probes"
	"github.com/rzbill/localai/pkg/provision"
	"github.com/rzbill/localai/pkg/runner"
	"github.com/rzbill/localai/pkg/runner/docker"
	"github.com/rzbill/localai/pkg/runner/process"
	"github.com/rzbill/localai/pkg/teardown"
	"github.com/rzbill/localai/pkg/version"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	workDir    string
	logLevel   string
	logFormat  string
	verbose    bool
}

// App carries the collaborators of a single invocation. Tests replace the
// streams, the process executor and the engine factory.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	Exec      process.Executor
	NewEngine func(cfg *config.Config, logger log.Logger) (runner.Engine, error)
	Now       func() time.Time

	opts     globalOptions
	cfg      *config.Config
	logger   log.Logger
	reporter *format.Reporter
	prompter *prompt.Prompter
	runID    string
}

// NewApp returns an App wired to the real terminal, processes and Docker daemon.
func NewApp() *App {
	return &App{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
		NewEngine: func(cfg *config.Config, logger log.Logger) (runner.Engine, error) {
			dc := cfg.Docker
			return docker.NewDockerEngineWithConfig(logger, &dc)
		},
		Now: time.Now,
	}
}

// errorHints explain the failures an operator can fix themselves.
var errorHints = []format.Hint{
	{Target: envfile.ErrTemplateNotFound, Text: "run localai from the stack directory that contains .env.example"},
	{Target: envfile.ErrSnapshotNotFound, Text: "run `localai start` first to generate it"},
	{Target: compose.ErrComposeUnavailable, Text: "install Docker with the compose plugin, or docker-compose"},
	{Target: lifecycle.ErrCoreNotReady, Text: "inspect the database container with `docker logs supabase-db`"},
	{Target: provision.ErrSigningKeyMissing, Text: "regenerate the snapshot with `localai start --force-regenerate`"},
	{Target: teardown.ErrDeclined, Text: "nothing was removed"},
	{Target: process.ErrToolMissing, Text: "install git and Docker and make sure both are on PATH"},
}

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "localai",
		Short: "localai - provision and run the local AI stack",
		Long: `localai generates the stack's secrets once, keeps every copy of the
environment file in sync, starts the selected components through Docker
Compose and removes everything it created on cleanup.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.opts.configFile, "config", "", "config file (default is ./localai.yaml)")
	flags.StringVarP(&app.opts.workDir, "work-dir", "C", "", "stack directory (default is the current directory)")
	flags.StringVar(&app.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&app.opts.logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable verbose output (same as --log-level=debug)")

	root.AddCommand(newStartCmd(app))
	root.AddCommand(newStopCmd(app))
	root.AddCommand(newStatusCmd(app))
	root.AddCommand(newCleanupCmd(app))
	root.AddCommand(newTunnelCmd(app))
	root.AddCommand(newHistoryCmd(app))
	root.AddCommand(newVersionCmd(app))
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	root := NewRootCmd(app)
	if err := root.ExecuteContext(ctx); err != nil {
		app.Reporter().Error(err)
		stop()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger, reporter and prompter.
func (a *App) setup(cmd *cobra.Command) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	a.reporter = format.NewReporter(a.Out, a.Err).WithHints(errorHints...)
	a.prompter = prompt.New(a.In, a.Out)
	a.runID = uuid.NewString()

	cfg, err := config.Load(a.opts.configFile, a.opts.workDir)
	if err != nil {
		return err
	}
	abs, err := cfg.AbsWorkDir()
	if err != nil {
		return err
	}
	cfg.WorkDir = abs

	logCfg := cfg.Log
	if a.opts.logLevel != "" {
		logCfg.Level = a.opts.logLevel
	}
	if a.opts.verbose {
		logCfg.Level = "debug"
	}
	if a.opts.logFormat != "" {
		logCfg.Format = a.opts.logFormat
	}
	logCfg.DisableColors = !format.IsColorEnabled()
	logCfg.RedactedFields = append(logCfg.RedactedFields, cfg.RedactedKeys()...)

	logger, err := log.ApplyConfig(&logCfg, a.Err)
	if err != nil {
		return err
	}
	a.logger = logger.With(log.RunID(a.runID), log.Str("command", cmd.Name()))
	log.SetDefaultLogger(a.logger)
	a.cfg = cfg

	if a.Exec == nil {
		a.Exec = process.NewProcessRunner(
			process.WithLogger(a.logger),
			process.WithOutput(a.Out, a.Err),
		)
	}

	a.logger.Debug("Configuration loaded", log.Str("work_dir", cfg.WorkDir), log.Str("project", cfg.Project))
	return nil
}

// Reporter returns the user-facing reporter, usable before setup ran.
func (a *App) Reporter() *format.Reporter {
	if a.reporter == nil {
		return format.NewReporter(a.Out, a.Err).WithHints(errorHints...)
	}
	return a.reporter
}

func (a *App) engine() (runner.Engine, error) {
	if a.NewEngine == nil {
		return nil, errors.New("no container engine configured")
	}
	e, err := a.NewEngine(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Docker: %w", err)
	}
	return e, nil
}

func (a *App) composeClient() *compose.Client {
	opts := []compose.Option{compose.WithLogger(a.logger)}
	if a.cfg.Compose.Binary != "" {
		opts = append(opts, compose.WithBinary(a.cfg.Compose.Binary))
	}
	return compose.NewClient(a.Exec, a.cfg.Project, a.cfg.WorkDir, opts...)
}

func (a *App) provisioner(force bool) *provision.Provisioner {
	env := a.cfg.Env
	return provision.New(provision.Options{
		WorkDir:          a.cfg.WorkDir,
		EnvFile:          env.File,
		Template:         env.Template,
		TemplateRequired: env.TemplateRequired,
		Mirrors:          env.Mirrors,
		Exclude:          env.Exclude,
		Fields:           env.Fields,
		Token:            env.Token,
		Force:            force,
		Now:              a.Now,
	}, a.logger)
}

func (a *App) controller(engine runner.Engine, prober probes.Prober) *lifecycle.Controller {
	return lifecycle.NewController(a.composeClient(), engine, prober, lifecycle.Options{
		Project:      a.cfg.Project,
		ComposeFiles: a.cfg.Compose.Files,
		CoreFiles:    a.cfg.Core.Files,
		CoreServices: a.cfg.Core.Services,
		EnvFile:      a.cfg.Env.File,
		Readiness:    a.cfg.Core.Readiness,
	}, a.logger)
}

// record writes a run to the journal. Journal failures never fail the command.
func (a *App) record(ctx context.Context, rec *journal.Record) {
	if !a.cfg.Journal.Enabled {
		return
	}
	j := journal.NewJournal(a.logger)
	if err := j.Open(a.cfg.Resolve(a.cfg.Journal.Dir)); err != nil {
		a.logger.Warn("Run not recorded", log.Err(err))
		return
	}
	defer j.Close()
	if err := j.Put(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Warn("Run not recorded", log.Err(err))
	}
}
