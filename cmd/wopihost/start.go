package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/config"
	"github.com/marmos91/wopihost/pkg/server"
	"github.com/spf13/cobra"
)

var seedSamples bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the WOPI host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd.Context())
	},
}

func init() {
	startCmd.Flags().BoolVar(&seedSamples, "seed", false, "create sample documents in an empty root container")
}

func runStart(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Configure logger
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to set log output: %w", err)
	}

	fmt.Println("wopihost - WOPI document host")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Cancelled on SIGINT/SIGTERM to initiate graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := config.InitializeMetrics(cfg)

	reg, err := config.InitializeRegistry(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("Failed to release resources: %v", err)
		}
	}()

	if seedSamples {
		created, err := createInitialStructure(ctx, reg.Provider())
		if err != nil {
			return fmt.Errorf("failed to create sample documents: %w", err)
		}
		if created {
			logger.Info("Sample documents created")
		}
	}

	collector := config.CreateCollector(&cfg.GC, reg.MetadataStore(), reg.ContentStore(), metrics.GCMetrics)
	collector.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := collector.Stop(stopCtx); err != nil {
			logger.Warn("Garbage collector did not stop cleanly: %v", err)
		}
	}()

	srv := server.New(reg, server.Options{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		SweepInterval:   cfg.Locks.SweepInterval,
	})

	adapters, err := config.CreateAdapters(cfg, metrics)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	// Log server configuration
	logger.Info("Server configuration:")
	logger.Info("  Metadata store: %s", cfg.Metadata.Type)
	logger.Info("  Content store: %s", cfg.Content.Type)
	logger.Info("  Lock store: %s (sweep every %v)", cfg.Locks.Type, cfg.Locks.SweepInterval)
	logger.Info("  Proof validation: %t", cfg.Proof.Enabled)
	logger.Info("  Garbage collection: %t (every %v)", cfg.GC.Enabled, cfg.GC.Interval)
	logger.Info("  Metrics: %t", cfg.Metrics.Enabled)
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	logger.Info("WOPI host listening on %s:%d%s. Press Ctrl+C to stop.",
		cfg.Adapters.WOPI.BindAddress, cfg.Adapters.WOPI.Port, cfg.Adapters.WOPI.BasePath)

	err = srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Server stopped gracefully")
		return nil
	}
	if err != nil {
		logger.Error("Server error: %v", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
