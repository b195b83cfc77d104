package cli

import (
	"fmt"

	"github.com/fekuna/omnipos-sales-service/migrations"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := rootOpts.env()
			defer log.Sync()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(db, migrations.FS, migrations.Table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", cfg.Postgres.DBName)
			return nil
		},
	}
}
