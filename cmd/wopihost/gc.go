package main

import (
	"fmt"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/config"
	"github.com/spf13/cobra"
)

var gcDryRun bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete content that no file owns",
	Long: `gc runs one garbage collection pass over the configured stores and
exits. Persistent metadata stores are opened exclusively, so run it while
the host is stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.SetLevel(cfg.Logging.Level)
		logger.SetFormat(cfg.Logging.Format)

		reg, err := config.InitializeRegistry(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err := reg.Close(); err != nil {
				logger.Error("Failed to release resources: %v", err)
			}
		}()

		gcCfg := cfg.GC
		if gcDryRun {
			gcCfg.DryRun = true
		}
		collector := config.CreateCollector(&gcCfg, reg.MetadataStore(), reg.ContentStore(), nil)

		stats, err := collector.RunNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("garbage collection failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
		return nil
	},
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report orphaned content without deleting it")
}
