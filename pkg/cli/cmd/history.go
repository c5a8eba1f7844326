package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/localai/pkg/cli/format"
	"github.com/rzbill/localai/pkg/journal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded start and stop runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return app.runHistory(cmd.Context(), id, limit, output)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 for all")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, yaml)")
	return cmd
}

func (a *App) runHistory(ctx context.Context, id string, limit int, output string) error {
	if output != "table" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	if !a.cfg.Journal.Enabled {
		a.reporter.Info("The run journal is disabled")
		return nil
	}

	dir := a.cfg.Resolve(a.cfg.Journal.Dir)
	j := journal.NewJournal(a.logger)
	if err := j.Open(dir); err != nil {
		return err
	}
	defer j.Close()

	var records []*journal.Record
	if id != "" {
		rec, err := j.Get(ctx, id)
		if err != nil {
			return err
		}
		records = []*journal.Record{rec}
	} else {
		var err error
		if records, err = j.List(ctx, limit); err != nil {
			return err
		}
	}

	if output == "yaml" {
		if records == nil {
			records = []*journal.Record{}
		}
		out, err := yaml.Marshal(records)
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}
		_, err = a.reporter.Out().Write(out)
		return err
	}

	rows := [][]string{{"RUN", "COMMAND", "STARTED", "DURATION", "PROFILE", "STATE", "ERROR"}}
	for _, r := range records {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Command,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration().Round(100 * time.Millisecond).String(),
			r.Profile,
			format.StatusLabel(r.State),
			truncate(r.Error, 60),
		})
	}
	return a.reporter.Table(rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
