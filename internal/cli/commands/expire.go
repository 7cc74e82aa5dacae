package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/database"
	"github.com/vakspot/vakspot/internal/jobs"
	"github.com/vakspot/vakspot/internal/workers"
)

// NewExpireJobsCmd creates the expire-jobs command
func NewExpireJobsCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "expire-jobs",
		Short: "Expire open jobs older than the configured maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if maxAge == 0 {
				maxAge = cfg.Jobs.MaxAge
			}
			return runExpireJobs(cmd.Context(), db, log, maxAge, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override JOB_MAX_AGE_DAYS (e.g. 720h)")
	return cmd
}

func runExpireJobs(ctx context.Context, db *gorm.DB, log zerolog.Logger, maxAge time.Duration, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxAge <= 0 {
		return fmt.Errorf("max age must be positive, got %s", maxAge)
	}

	if err := workers.ExpireJobs(ctx, jobs.NewService(db, log), maxAge, log); err != nil {
		return err
	}

	fmt.Fprintf(out, "Expired open jobs older than %s\n", maxAge)
	return nil
}
