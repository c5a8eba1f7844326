package cmd

import (
	"github.com/rzbill/localai/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the localai version information",
		Args:  cobra.NoArgs,
		// version needs neither config nor logger
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			app.Reporter().Info("%s", version.Info())
		},
	}
}
