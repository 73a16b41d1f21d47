package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/registry"
)

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates the metadata and content stores
//  2. Creates the lock store and lock manager
//  3. Creates the user info store and checksum cache
//  4. Creates the access-token resolver and the proof key provider
//  5. Validates that the registry is complete
//
// On failure every collaborator created so far is closed again.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Complete configuration loaded from config file
//   - m: Metrics created by InitializeMetrics (nil = no metrics)
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg, config.InitializeMetrics(cfg))
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer reg.Close()
func InitializeRegistry(ctx context.Context, cfg *Config, m *MetricsResult) (reg *registry.Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if m == nil {
		m = &MetricsResult{}
	}

	logger.Debug("Initializing registry from configuration")

	reg = registry.NewRegistry()
	defer func() {
		if err != nil {
			if cerr := reg.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			reg = nil
		}
	}()

	// Step 1: Stores
	metaStore, err := CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return reg, fmt.Errorf("failed to create metadata store: %w", err)
	}
	contentStore, err := CreateContentStore(ctx, &cfg.Content, m.S3Metrics)
	if err != nil {
		_ = metaStore.Close()
		return reg, fmt.Errorf("failed to create content store: %w", err)
	}
	if err := reg.SetStores(metaStore, contentStore); err != nil {
		_ = metaStore.Close()
		return reg, err
	}
	logger.Debug("Registered stores: metadata=%s, content=%s", cfg.Metadata.Type, cfg.Content.Type)

	// Step 2: Locks
	lockStore, err := CreateLockStore(ctx, &cfg.Locks, metaStore)
	if err != nil {
		return reg, fmt.Errorf("failed to create lock store: %w", err)
	}
	if lockStore.Close != nil {
		reg.AddCloser("lock store", lockStore.Close)
	}
	if err := reg.SetLockManager(lock.NewManager(lockStore.Store, m.LockMetrics)); err != nil {
		return reg, err
	}
	logger.Debug("Registered lock manager: store=%s", cfg.Locks.Type)

	// Step 3: User info and checksums
	reg.SetUserInfoStore(CreateUserInfoStore(&cfg.UserInfo, metaStore))

	checksums, err := CreateChecksumCache(&cfg.Server)
	if err != nil {
		return reg, err
	}
	reg.SetChecksumCache(checksums)

	// Step 4: Tokens and proof keys
	tokens, err := CreateTokenResolver(&cfg.Auth)
	if err != nil {
		return reg, fmt.Errorf("failed to create token resolver: %w", err)
	}
	if err := reg.SetTokenResolver(tokens); err != nil {
		return reg, err
	}

	proofKeys, err := CreateProofKeys(&cfg.Proof)
	if err != nil {
		return reg, fmt.Errorf("failed to create proof keys: %w", err)
	}
	if proofKeys != nil {
		reg.SetProofKeys(proofKeys)
	}

	// Step 5: Completeness
	if err := reg.Validate(); err != nil {
		return reg, err
	}

	return reg, nil
}
