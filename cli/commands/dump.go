package commands

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/libsql-go/cli/internal/config"
	"github.com/satishbabariya/libsql-go/cli/internal/ui"
)

// confirm asks a yes/no question. Tests replace it.
var confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

func newDumpCommand(a *app) *cobra.Command {
	var (
		output string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write an SQL dump of the database",
		Long:  "Stream the SQL dump of the database to stdout or, with -o, to a file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			if output == "" {
				_, err := c.Dump(cmd.Context(), cmd.OutOrStdout())
				return err
			}

			exists, err := afero.Exists(config.AppFs, output)
			if err != nil {
				return err
			}
			if exists && !yes {
				ok, err := confirm(fmt.Sprintf("%s exists. Overwrite?", output))
				if err != nil {
					return err
				}
				if !ok {
					ui.PrintWarning(cmd.ErrOrStderr(), "dump cancelled")
					return nil
				}
			}

			f, err := config.AppFs.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			n, err := c.Dump(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			ui.PrintSuccess(cmd.ErrOrStderr(), "wrote %d bytes to %s", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write instead of stdout")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "overwrite an existing file without asking")
	return cmd
}
