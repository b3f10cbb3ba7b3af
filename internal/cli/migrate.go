package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mvarela/gapfill/internal/database"
	"github.com/mvarela/gapfill/internal/database/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Open the database, apply any pending migrations and print the
applied versions. The serve command migrates automatically; this exists
for deployments that migrate as a separate step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Open runs pending migrations as part of startup.
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	applied, err := migrations.GetApplied(context.Background(), db.DB)
	if err != nil {
		return fmt.Errorf("listing applied migrations: %w", err)
	}

	for _, m := range applied {
		fmt.Printf("%s\t%s\n", m.ID, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}

	log.Info().Int("count", len(applied)).Msg("Migrations up to date")
	return nil
}
