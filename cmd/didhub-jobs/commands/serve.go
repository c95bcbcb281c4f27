package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kusekushi/didhub-jobs/audit"
	"github.com/Kusekushi/didhub-jobs/config"
	"github.com/Kusekushi/didhub-jobs/jobs"
	"github.com/Kusekushi/didhub-jobs/ledger"
	"github.com/Kusekushi/didhub-jobs/logger"
	"github.com/Kusekushi/didhub-jobs/scheduler"
	"github.com/Kusekushi/didhub-jobs/server"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// ServeCmd starts the scheduler daemon with the admin HTTP surface.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler daemon",
	Long: `Start the scheduler daemon in foreground mode.

The daemon will:
- Open and migrate the database
- Register the job catalog with default schedules
- Run the cron tick loop
- Serve the admin API (jobs, schedules, triggers, run history)
- Run until interrupted (Ctrl+C) with graceful shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if err := logger.Initialize(cfg.Server.LogAsJSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Cleanup()
		log := logger.Logger.Named("daemon")

		store, err := storage.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		runLedger := ledger.New(logger.Logger)
		recorder := audit.NewDBRecorder(store.DB())

		schedCfg := scheduler.DefaultConfig()
		if cfg.Jobs.TickIntervalSeconds > 0 {
			schedCfg.TickInterval = time.Duration(cfg.Jobs.TickIntervalSeconds) * time.Second
		}

		sched := scheduler.NewWithContext(ctx, store, runLedger, recorder, schedCfg, logger.Logger)
		for _, j := range jobs.Catalog(cfg.Jobs.AuditRetentionDays, cfg.Jobs.SessionMaxAgeHours) {
			sched.RegisterJob(j)
		}
		sched.Start()

		admin := server.New(sched, runLedger, logger.Logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- admin.ListenAndServe(cfg.Server.Port)
		}()

		log.Infow("Daemon started",
			"db", cfg.Database.Path,
			"port", cfg.Server.Port,
			"tick_interval", schedCfg.TickInterval)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			log.Infow("Shutting down", "signal", sig.String())
		case err := <-errCh:
			log.Errorw("Admin server exited", "error", err)
		}

		if err := sched.Stop(); err != nil {
			return err
		}
		cancel()

		log.Infow("Daemon stopped")
		return nil
	},
}

// loadConfig resolves the --config flag and loads configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
