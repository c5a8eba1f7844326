package cmd

import (
	"context"

	"github.com/rzbill/localai/pkg/journal"
	"github.com/spf13/cobra"
)

func newStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop every container of the stack",
		Long:  `Bring down the stack's containers. Nothing running is not an error.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStop(cmd.Context())
		},
	}
}

func (a *App) runStop(ctx context.Context) (err error) {
	rec := journal.NewRecord("stop", a.Now())
	rec.ID = a.runID
	state := "STOPPED"
	defer func() {
		if err != nil {
			state = "FAILED"
		}
		rec.Finish(state, err, a.Now())
		a.record(ctx, rec)
	}()

	a.reporter.Step("Stopping %s", a.cfg.Project)
	if err := a.controller(nil, nil).StopAll(ctx); err != nil {
		return err
	}
	a.reporter.Success("Stopped")
	return nil
}
