package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborline/authcore/config"
	"github.com/harborline/authcore/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("migrate requires DATABASE_URL")
		}
		if err := postgres.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
