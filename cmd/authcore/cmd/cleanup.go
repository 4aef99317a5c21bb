package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborline/authcore/audit"
	"github.com/harborline/authcore/auth"
	"github.com/harborline/authcore/config"
	"github.com/harborline/authcore/store/postgres"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired sessions and stale login attempts once and exit",
	Long: `One-shot garbage collection for external schedulers (cron, systemd
timers). The server command runs the same collection on an internal ticker;
this command exists for deployments that prefer scheduling it themselves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("cleanup requires DATABASE_URL; the in-memory store has nothing to clean")
		}

		pg, err := postgres.NewFromDSN(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()

		mgr := auth.New(pg, audit.NewDiscard(),
			auth.WithSessionTimeout(cfg.SessionTimeout),
		)
		sessions, attempts, err := mgr.CleanupExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired sessions and %d stale login attempts\n", sessions, attempts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
