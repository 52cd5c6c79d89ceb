package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/app"
	"coopregistry/portal-backend/internal/config"
	"coopregistry/portal-backend/internal/export/scheduler"
	"coopregistry/portal-backend/internal/logging"
)

func main() {
	var (
		configPath string
		runOnce    string
	)
	cmd := &cobra.Command{
		Use:   "export-worker",
		Short: "Run scheduled cooperative directory exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, runOnce)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	cmd.Flags().StringVar(&runOnce, "run", "", "execute the named schedule once and exit")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, runOnce string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	schedules, err := scheduler.FromConfig(cfg.Exports.Schedules)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Exports.Timezone)
	if err != nil {
		return fmt.Errorf("invalid exports timezone %q: %w", cfg.Exports.Timezone, err)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	portal, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer portal.Close()

	var sender scheduler.EmailSender
	if cfg.Exports.Email.From != "" {
		client, err := scheduler.NewSESSender(ctx, cfg.Exports.Email.Region)
		if err != nil {
			return err
		}
		sender = client
	} else {
		logger.Warn("No sender address configured; email delivery is disabled")
	}

	delivery := scheduler.NewDeliveryManager(sender, portal.Store, scheduler.DeliveryConfig{
		FromAddress:   cfg.Exports.Email.From,
		Bucket:        cfg.Storage.Bucket,
		ArchivePrefix: cfg.Exports.ArchivePrefix,
	}, logger.Named("delivery"))
	executor := scheduler.NewExecutor(portal.Cooperatives, portal.Renderer, delivery, logger.Named("executor")).
		WithNotifier(portal.Notifications).
		WithMetrics(portal.Metrics)

	manager := scheduler.NewScheduleManager(executor, loc, logger.Named("scheduler"))
	for _, s := range schedules {
		if err := manager.Add(s); err != nil {
			return err
		}
	}

	if runOnce != "" {
		exec, err := manager.RunNow(ctx, runOnce)
		if err != nil {
			return err
		}
		logger.Info("Export finished",
			zap.String("schedule", runOnce),
			zap.String("filename", exec.Filename),
			zap.Int("rows", exec.Rows))
		return nil
	}

	if len(schedules) == 0 {
		logger.Warn("No export schedules configured")
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	for _, e := range manager.Entries() {
		logger.Info("Next run", zap.String("schedule", e.Name), zap.Time("at", e.Next))
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()
	manager.Stop()
	logger.Info("Export worker stopped")
	return nil
}
