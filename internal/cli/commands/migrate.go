package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vakspot/vakspot/internal/database"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", describeDatabase(cfg.Database.URL))
			return nil
		},
	}
}

func describeDatabase(url string) string {
	if database.IsPostgresURL(url) {
		return "postgres"
	}
	return "sqlite: " + url
}
