package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rzbill/localai/pkg/cli/format"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusRow is the printable form of one container.
type statusRow struct {
	Name    string   `yaml:"name"`
	Service string   `yaml:"service,omitempty"`
	State   string   `yaml:"state"`
	Health  string   `yaml:"health,omitempty"`
	Status  string   `yaml:"status,omitempty"`
	Ports   []string `yaml:"ports,omitempty"`
}

func newStatusCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the stack's containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStatus(cmd.Context(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, yaml)")
	return cmd
}

func (a *App) runStatus(ctx context.Context, output string) error {
	if output != "table" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	stale, err := a.provisioner(false).StaleMirrors()
	if err != nil {
		return fmt.Errorf("failed to compare environment mirrors: %w", err)
	}
	for _, m := range stale {
		a.reporter.Warn("%s differs from %s; run `localai start` to resync it", m, a.cfg.Env.File)
	}

	seq, err := a.controller(engine, nil).Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	var rows []statusRow
	for c := range seq {
		row := statusRow{
			Name:    c.Name,
			Service: c.Service,
			State:   string(c.State),
			Status:  c.Status,
			Ports:   c.Ports,
		}
		if c.Health != "" && c.Health != "none" {
			row.Health = string(c.Health)
		}
		rows = append(rows, row)
	}

	if output == "yaml" {
		if rows == nil {
			rows = []statusRow{}
		}
		out, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		_, err = a.reporter.Out().Write(out)
		return err
	}

	if len(rows) == 0 {
		a.reporter.Info("No containers running for project %s", a.cfg.Project)
		return nil
	}
	table := [][]string{{"NAME", "SERVICE", "STATE", "HEALTH", "PORTS"}}
	for _, r := range rows {
		health := r.Health
		if health == "" {
			health = "-"
		}
		table = append(table, []string{r.Name, r.Service, format.StatusLabel(r.State), health, strings.Join(r.Ports, ", ")})
	}
	return a.reporter.Table(table)
}
