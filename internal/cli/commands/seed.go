package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/catalog"
	"github.com/vakspot/vakspot/internal/database"
)

// DefaultCategories is the trade list a fresh installation starts with
var DefaultCategories = []string{
	"Loodgieter",
	"Elektricien",
	"Schilder",
	"Timmerman",
	"Dakdekker",
	"Stukadoor",
	"Tegelzetter",
	"Hovenier",
	"Klusjesman",
	"Installateur",
}

// NewSeedCategoriesCmd creates the seed-categories command
func NewSeedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-categories [name...]",
		Short: "Add the default trade categories",
		Args:  cobra.ArbitraryArgs,
		Long: `Add trade categories that do not exist yet.

Without arguments the built-in Dutch trade list is used. Existing slugs are
left untouched, so the command is safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			return runSeedCategories(cmd.Context(), db, log, args, cmd.OutOrStdout())
		},
	}
}

func runSeedCategories(ctx context.Context, db *gorm.DB, log zerolog.Logger, names []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(names) == 0 {
		names = DefaultCategories
	}

	added, err := catalog.NewService(db, log).Seed(ctx, names)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Added %d of %d categories\n", added, len(names))
	return nil
}
