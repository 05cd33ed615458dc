package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/normprops/internal/core/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "list migrations and their state without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("--db-url or NP_SERVER_DB_URL required")
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.RedactedDBURL(), err)
	}
	defer database.Close()

	if status, _ := cmd.Flags().GetBool("status"); status {
		statuses, err := db.MigrateStatus(ctx, database)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tSTATE\tAPPLIED AT\tDURATION")
		for _, s := range statuses {
			state, at, took := "pending", "-", "-"
			if s.Applied {
				state = "applied"
				took = (time.Duration(s.ExecutionMs) * time.Millisecond).String()
				if s.AppliedAt != nil {
					at = s.AppliedAt.UTC().Format(time.RFC3339)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, state, at, took)
		}
		return w.Flush()
	}

	if err := db.MigrateUp(ctx, database); err != nil {
		return err
	}
	logger.Info("migrations applied", "url", cfg.RedactedDBURL())
	return nil
}
