package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

// ServeFunc runs the HTTP server until ctx is cancelled.
type ServeFunc func(ctx context.Context, cfg *app.Config, logger *slog.Logger) error

// env carries the configuration loaded before any subcommand runs.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

// NewRootCommand builds the odyssey command tree. Running it without a
// subcommand starts the server.
func NewRootCommand(serve ServeFunc) *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "odyssey",
		Short:         "Odyssey double-entry ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = app.NewLogger(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), e.cfg, e.logger)
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), e.cfg, e.logger)
			},
		},
		newMigrateCommand(e),
		newJobsCommand(e),
	)
	return root
}
