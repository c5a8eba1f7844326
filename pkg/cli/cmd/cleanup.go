package cmd

import (
	"context"
	"errors"

	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner"
	"github.com/rzbill/localai/pkg/teardown"
	"github.com/spf13/cobra"
)

func newCleanupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove everything the stack created",
		Long: `Stop and remove the stack's containers, volumes and images, delete the
generated environment files and data directories, and prune unused
Docker resources. Version-controlled inputs are never removed.

Only an answer of "y" at the prompt starts the cleanup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runCleanup(cmd.Context())
		},
	}
}

func (a *App) runCleanup(ctx context.Context) error {
	var engine runner.Engine
	if e, err := a.engine(); err != nil {
		a.logger.Warn("Container engine unavailable, removing files only", log.Err(err))
		a.reporter.Warn("Docker is not reachable; containers, volumes and images are left in place")
	} else {
		engine = e
		defer e.Close()
	}

	plan := a.cfg.Teardown
	plan.Project = a.cfg.Project
	plan.ComposeFiles = append(append([]string{}, a.cfg.Compose.Files...), a.cfg.Core.Files...)

	rev := teardown.NewReverser(a.composeClient(), engine, a.cfg.WorkDir, a.logger)
	report, err := rev.Run(ctx, plan, a.prompter)
	if errors.Is(err, teardown.ErrDeclined) {
		a.reporter.Info("Cleanup cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	failed := report.Failed()
	for _, f := range failed {
		a.reporter.Warn("%s %s: %v", f.Step, f.Target, f.Err)
	}
	if len(failed) == 0 {
		a.reporter.Success("Cleanup complete")
	} else {
		a.reporter.Success("Cleanup finished with %d of %d steps failed", len(failed), len(report.Steps))
	}
	return nil
}
