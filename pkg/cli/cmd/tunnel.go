package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newTunnelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tunnel",
		Short: "Manage the optional Cloudflare tunnel",
	}
	cmd.AddCommand(newTunnelSetCmd(app))
	return cmd
}

func newTunnelSetCmd(app *App) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the tunnel token in the environment file",
		Long: `Append the tunnel token to the environment file and its mirrors. An
existing token is kept; delete it from the file first to replace it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				t, err := app.prompter.Secret("Tunnel token")
				if err != nil {
					return err
				}
				token = t
			}
			if token == "" {
				return errors.New("a tunnel token is required")
			}
			return app.setTunnelToken(app.provisioner(false), token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "tunnel token (read from the terminal when omitted)")
	return cmd
}
