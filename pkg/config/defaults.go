package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/wopihost/pkg/adapter/wopi"
	"github.com/marmos91/wopihost/pkg/discovery"
	"github.com/marmos91/wopihost/pkg/gc"
	"github.com/marmos91/wopihost/pkg/store/metadata"
)

// DefaultWOPIPort is the port the WOPI adapter listens on when none is set.
const DefaultWOPIPort = 8880

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans that default to true are registered with viper in setupViper,
//     since a zero false cannot be told apart from an explicit one here
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyLocksDefaults(&cfg.Locks)
	applyProofDefaults(&cfg.Proof)
	applyAuthDefaults(&cfg.Auth)
	applyGCDefaults(&cfg.GC)
	applyAdaptersDefaults(&cfg.Adapters, &cfg.Auth)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ChecksumCacheEntries == 0 {
		cfg.ChecksumCacheEntries = 10000
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.RootName == "" {
		cfg.RootName = metadata.DefaultRootName
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(defaultDataDir(), "metadata")
	}
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = filepath.Join(defaultDataDir(), "content")
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

// applyLocksDefaults sets lock store defaults.
func applyLocksDefaults(cfg *LocksConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyProofDefaults sets proof defaults. Proof validation itself stays
// off unless enabled explicitly, because it needs a reachable client.
func applyProofDefaults(cfg *ProofConfig) {
	if cfg.Source == "" {
		cfg.Source = "discovery"
	}
	if cfg.Discovery == nil {
		cfg.Discovery = make(map[string]any)
	}
	if cfg.Static == nil {
		cfg.Static = make(map[string]any)
	}
	if _, ok := cfg.Discovery["refresh_interval"]; !ok {
		cfg.Discovery["refresh_interval"] = discovery.DefaultRefreshInterval.String()
	}
}

// applyAuthDefaults sets access-token defaults. The secret has no default.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "wopihost"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 10 * time.Hour
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = gc.DefaultInterval
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = gc.DefaultConcurrency
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig, auth *AuthConfig) {
	if cfg.WOPI.Port == 0 {
		cfg.WOPI.Port = DefaultWOPIPort
	}
	cfg.WOPI.ApplyDefaults()
	cfg.WOPI.AllowAnonymous = auth.AllowAnonymous
}

// defaultDataDir is where persistent stores live unless configured.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "wopihost")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "wopihost")
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
//
// The JWT secret is left empty, so the result does not validate until one
// is supplied (InitConfig generates a random one).
func GetDefaultConfig() *Config {
	cfg := &Config{
		UserInfo: UserInfoConfig{Enabled: true},
		GC:       GCConfig{Enabled: true},
		Adapters: AdaptersConfig{
			WOPI: wopi.WOPIConfig{
				Enabled:      true,
				Capabilities: wopi.DefaultCapabilitiesConfig(),
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
