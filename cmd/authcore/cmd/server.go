package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/harborline/authcore/api"
	"github.com/harborline/authcore/audit"
	"github.com/harborline/authcore/auth"
	"github.com/harborline/authcore/config"
	"github.com/harborline/authcore/ratelimit"
	"github.com/harborline/authcore/store"
	"github.com/harborline/authcore/store/memory"
	"github.com/harborline/authcore/store/postgres"
)

var (
	addr    string
	dataDir string
	logDir  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if logDir != "" {
			cfg.LogDir = logDir
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		logger, err := audit.New(audit.Config{
			Dir:           cfg.LogDir,
			MaxFileSize:   cfg.LogMaxFileSize,
			RetentionDays: cfg.LogRetentionDays,
		})
		if err != nil {
			return fmt.Errorf("opening audit logs: %w", err)
		}
		defer logger.Close()

		st, closeStore, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		counters, err := ratelimit.NewBoltStore(filepath.Join(cfg.DataDir, "ratelimit.db"))
		if err != nil {
			return fmt.Errorf("opening rate limit store: %w", err)
		}
		defer counters.Close()

		mgr := auth.New(st, logger,
			auth.WithSessionTimeout(cfg.SessionTimeout),
			auth.WithLockoutPolicy(cfg.MaxLoginAttempts, cfg.LockoutWindow),
		)

		a := api.New(mgr, ratelimit.New(counters), logger,
			api.WithTrustedProxies(cfg.TrustedProxies),
			api.WithRatePolicy(cfg.RateLimitMax, cfg.RateLimitWindow),
		)

		r := chi.NewRouter()
		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Periodic GC for idle sessions and stale login attempts.
		gcCtx, stopGC := context.WithCancel(cmd.Context())
		defer stopGC()
		go runCleanupLoop(gcCtx, mgr, cfg.CleanupInterval)

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Starting authcore on %s (data: %s, logs: %s)...\n", cfg.Addr, cfg.DataDir, cfg.LogDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// openStore picks the backend: postgres when DATABASE_URL is set, otherwise
// the in-memory store for local development.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		fmt.Println("DATABASE_URL not set; using in-memory store (state is lost on restart)")
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.NewFromDSN(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pg, pg.Close, nil
}

func runCleanupLoop(ctx context.Context, mgr *auth.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := mgr.CleanupExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "cleanup: %v\n", err)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides AUTHCORE_ADDR)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data (overrides AUTHCORE_DATA_DIR)")
	serverCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for audit logs (overrides AUTHCORE_LOG_DIR)")
}
