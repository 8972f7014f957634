// Package cli implements the kpictl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kpitracker/internal/app/server"
	"kpitracker/internal/platform/config"
	"kpitracker/internal/platform/logging"
)

type runtime struct {
	databaseURL string
	logLevel    string
	app         *server.App
}

// RootCommand builds the kpictl command tree. Every subcommand opens the
// configured store, ensures the schema and runs with operator rights.
func RootCommand() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "kpictl",
		Short:         "Operate the KPI tracker store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&rt.databaseURL, "database-url", "", "Override DATABASE_URL (postgres:// or sqlite://)")
	rootCmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return rt.open(cmd.Context(), cmd.ErrOrStderr())
	}
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return rt.close()
	}

	rootCmd.AddCommand(
		schemaCommand(rt),
		importCommand(rt),
		exportCommand(rt),
		adminSecretCommand(rt),
		employeesCommand(rt),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) int {
	if err := RootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (rt *runtime) open(ctx context.Context, logOut io.Writer) error {
	cfg := config.Load()
	if rt.databaseURL != "" {
		cfg.DatabaseURL = rt.databaseURL
	}
	logger := logging.New(logOut, rt.logLevel, "text")
	app, err := server.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	rt.app = app
	return nil
}

func (rt *runtime) close() error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close()
	rt.app = nil
	return err
}
