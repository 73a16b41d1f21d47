package config

import (
	"fmt"

	"github.com/marmos91/wopihost/pkg/adapter"
	"github.com/marmos91/wopihost/pkg/adapter/wopi"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// This factory function centralizes adapter creation logic and makes it easy to:
//   - Add new protocol adapters
//   - Configure metrics for all adapters
//   - Handle adapter-specific initialization
//
// Parameters:
//   - cfg: The complete wopihost configuration
//   - m: Metrics created by InitializeMetrics (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, m *MetricsResult) ([]adapter.Adapter, error) {
	if m == nil {
		m = &MetricsResult{}
	}

	var adapters []adapter.Adapter

	// Create WOPI adapter if enabled
	if cfg.Adapters.WOPI.Enabled {
		wopiCfg := cfg.Adapters.WOPI
		wopiCfg.AllowAnonymous = cfg.Auth.AllowAnonymous

		wopiAdapter := wopi.New(wopiCfg, wopi.Options{
			Metrics:      m.WOPIMetrics,
			ProofMetrics: m.ProofMetrics,
		})
		adapters = append(adapters, wopiAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
