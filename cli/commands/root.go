// Package commands implements the libsql CLI.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/libsql-go/cli/internal/config"
	"github.com/satishbabariya/libsql-go/cli/internal/ui"
	"github.com/satishbabariya/libsql-go/cli/internal/version"
	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/runtime/client"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "libsql",
		Short:         "Command line client for libSQL servers",
		Long:          "libsql talks to a libSQL server over the HTTP pipeline protocol.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("url", "", "server URL (libsql://, https:// or http://); env LIBSQL_URL")
	flags.String("token", "", "auth token; env LIBSQL_TOKEN")
	flags.Bool("debug", false, "log pipeline calls to stderr")
	flags.Bool("no-color", false, "disable colored output")
	for _, key := range []string{config.KeyURL, config.KeyToken, config.KeyDebug} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newVersionCommand(a),
		newDumpCommand(a),
		newExecCommand(a),
		newInspectCommand(a),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		ui.PrintError(root.ErrOrStderr(), "%v", err)
	}
	return err
}

func (a *app) load(cmd *cobra.Command) error {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		ui.DisableColor()
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	debug.Init(cfg.Debug)
	a.logger = debug.Logger()
	if cfg.File != "" {
		a.logger.Debug("using config file", "path", cfg.File)
	}
	return nil
}

func (a *app) client() (*client.Client, error) {
	if a.cfg.URL == "" {
		return nil, fmt.Errorf("no server URL: pass --url or set LIBSQL_URL")
	}
	return client.New(a.cfg.URL, a.cfg.Token, client.WithLogger(a.logger))
}
