package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vakspot/vakspot/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "vakspot",
	Short: "VakSpot - Operator tooling for the marketplace",
	Long: `VakSpot CLI - Administer a VakSpot installation.

Reads the same environment (DATABASE_URL, LOG_LEVEL, ...) as the server and
works directly against its database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vakspot version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewCreateAdminCmd())
	rootCmd.AddCommand(commands.NewSeedCategoriesCmd())
	rootCmd.AddCommand(commands.NewExpireJobsCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
