package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/libsql-go/cli/internal/ui"
	"github.com/satishbabariya/libsql-go/cli/internal/version"
)

func newVersionCommand(a *app) *cobra.Command {
	var clientOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		Long: `Print the CLI version and, unless --client is set, the version of the
configured server checked against min_server_version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.Get().FullString())
			if clientOnly {
				return nil
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			server, err := c.ServerVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get server version: %w", err)
			}
			fmt.Fprintf(out, "Server: %s (%s)\n", server, c.URL())

			if err := version.CheckServer(server, a.cfg.MinServerVersion); err != nil {
				return err
			}
			ui.PrintSuccess(out, "server satisfies %s", a.cfg.MinServerVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clientOnly, "client", false, "print the client version only")
	return cmd
}
