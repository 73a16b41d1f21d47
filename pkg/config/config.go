package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/wopihost/pkg/adapter/wopi"
	"github.com/spf13/viper"
)

// Config represents the complete wopihost configuration.
//
// This structure captures all configurable aspects of the host including:
//   - Logging configuration
//   - Server-wide settings
//   - Metadata and content store selection (store-specific sections)
//   - Lock store selection and sweeping
//   - Proof key source and access-token settings
//   - Protocol adapter configuration
//
// Configuration sources (in order of precedence):
//  1. Environment variables (WOPIHOST_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own options. The Config struct holds
// type-specific sections (e.g. content.filesystem, content.s3) and only the
// section matching the selected type is decoded, with mapstructure, by the
// factory for that type.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Content specifies the content store type and type-specific configuration
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Locks specifies where WOPI locks are kept
	Locks LocksConfig `mapstructure:"locks" yaml:"locks"`

	// UserInfo controls the PUT_USER_INFO store
	UserInfo UserInfoConfig `mapstructure:"userinfo" yaml:"userinfo"`

	// Proof controls validation of X-WOPI-Proof signatures
	Proof ProofConfig `mapstructure:"proof" yaml:"proof"`

	// Auth controls access-token handling
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// GC controls the orphaned-content collector
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// ChecksumCacheEntries bounds the SHA-256 digest cache. 0 disables it.
	ChecksumCacheEntries int64 `mapstructure:"checksum_cache_entries" yaml:"checksum_cache_entries" validate:"min=0"`
}

// MetadataConfig specifies metadata store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// RootName names the root container when the store is first created
	RootName string `mapstructure:"root_name" yaml:"root_name" validate:"required"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// ContentConfig specifies content store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// LocksConfig specifies lock store configuration.
type LocksConfig struct {
	// Type specifies which lock store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// SweepInterval runs the expired-lock sweeper at this period.
	// 0 disables the sweeper; expired locks are still ignored lazily.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"min=0"`

	// Badger contains BadgerDB-specific configuration. Without a db_path
	// the locks share the metadata database (metadata.type must be badger).
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// UserInfoConfig controls the user info store. The store follows the
// metadata backend: badger metadata keeps user info in the same database.
type UserInfoConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ProofConfig controls proof validation.
type ProofConfig struct {
	// Enabled turns on X-WOPI-Proof validation. Production deployments
	// should always enable it.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Source selects where the public keys come from
	// Valid values: discovery, static
	Source string `mapstructure:"source" yaml:"source" validate:"required,oneof=discovery static"`

	// Discovery contains discovery-client configuration (url, refresh_interval)
	// Only used when Source = "discovery"
	Discovery map[string]any `mapstructure:"discovery" yaml:"discovery"`

	// Static contains base64 modulus/exponent pairs
	// Only used when Source = "static"
	Static map[string]any `mapstructure:"static" yaml:"static"`
}

// AuthConfig controls access tokens.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 access tokens
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required,min=16"`

	// Issuer is the expected "iss" claim
	Issuer string `mapstructure:"issuer" yaml:"issuer" validate:"required"`

	// TokenTTL is the lifetime of tokens minted by "wopihost token"
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" validate:"required,gt=0"`

	// AllowAnonymous serves token-less requests as a read-only guest
	AllowAnonymous bool `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`
}

// GCConfig controls garbage collection of content no file owns.
type GCConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the collection period
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=0"`

	// Concurrency bounds parallel lookups and deletes
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled registers collectors and serves them on the WOPI adapter's
	// metrics_path
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// WOPI uses the wopi.WOPIConfig type directly to avoid duplication.
	WOPI wopi.WOPIConfig `mapstructure:"wopi" yaml:"wopi"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (WOPIHOST_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables, defaults that
// cannot be expressed as zero values, and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the WOPIHOST_ prefix and underscores
	// Example: WOPIHOST_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("WOPIHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true. Registering them also makes the keys
	// known to viper, so the matching environment variables are honoured.
	v.SetDefault("adapters.wopi.enabled", true)
	v.SetDefault("userinfo.enabled", true)
	v.SetDefault("gc.enabled", true)
	caps := wopi.DefaultCapabilitiesConfig()
	v.SetDefault("adapters.wopi.capabilities.supports_extended_lock_length", caps.SupportsExtendedLockLength)
	v.SetDefault("adapters.wopi.capabilities.supports_update", caps.SupportsUpdate)
	v.SetDefault("adapters.wopi.capabilities.supports_rename", caps.SupportsRename)
	v.SetDefault("adapters.wopi.capabilities.supports_delete_file", caps.SupportsDeleteFile)
	v.SetDefault("adapters.wopi.capabilities.supports_containers", caps.SupportsContainers)
	v.SetDefault("adapters.wopi.capabilities.supports_ecosystem", caps.SupportsEcosystem)

	// Secrets are commonly injected through the environment only
	v.SetDefault("auth.jwt_secret", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/wopihost/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error: defaults and environment variables still apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "wopihost")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "wopihost")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
