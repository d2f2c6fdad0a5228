package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

func newMigrateCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger schema",
	}

	withMigrator := func(fn func(*db.Migrator) error) error {
		m, err := db.NewMigrator(e.cfg.PGDSN, e.logger)
		if err != nil {
			return err
		}
		return errors.Join(fn(m), m.Close())
	}

	var all bool
	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if !all {
					return errors.New("migrate down: pass a step count or --all")
				}
				return withMigrator(func(m *db.Migrator) error { return m.Down() })
			}
			steps, err := positive(args[0])
			if err != nil {
				return err
			}
			return withMigrator(func(m *db.Migrator) error { return m.Steps(-steps) })
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *db.Migrator) error { return m.Up() })
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *db.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", version, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Mark a version as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("migrate force: %w", err)
				}
				return withMigrator(func(m *db.Migrator) error { return m.Force(version) })
			},
		},
	)
	return cmd
}

func positive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive number, got %q", raw)
	}
	return n, nil
}
