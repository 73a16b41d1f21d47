package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/wopihost/pkg/adapter/wopi"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.ChecksumCacheEntries != 10000 {
		t.Errorf("Expected default checksum cache size 10000, got %d", cfg.Server.ChecksumCacheEntries)
	}
}

func TestApplyDefaults_Content(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib")
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}

	if cfg.Content.Filesystem == nil {
		t.Fatal("Expected Filesystem map to be initialized")
	}
	want := filepath.Join("/var/lib", "wopihost", "content")
	if path, ok := cfg.Content.Filesystem["path"]; !ok || path != want {
		t.Errorf("Expected default filesystem path %q, got %v", want, path)
	}

	if cfg.Content.Memory == nil {
		t.Fatal("Expected Memory map to be initialized")
	}
	if region := cfg.Content.S3["region"]; region != "us-east-1" {
		t.Errorf("Expected default S3 region 'us-east-1', got %v", region)
	}
}

func TestApplyDefaults_Metadata(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib")
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Metadata.RootName != "root" {
		t.Errorf("Expected default root name 'root', got %q", cfg.Metadata.RootName)
	}
	if cfg.Metadata.Memory == nil {
		t.Fatal("Expected Memory map to be initialized")
	}
	want := filepath.Join("/var/lib", "wopihost", "metadata")
	if path := cfg.Metadata.Badger["db_path"]; path != want {
		t.Errorf("Expected default badger path %q, got %v", want, path)
	}
}

func TestApplyDefaults_LocksAndAuth(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Locks.Type != "memory" {
		t.Errorf("Expected default lock type 'memory', got %q", cfg.Locks.Type)
	}
	if cfg.Locks.SweepInterval != time.Minute {
		t.Errorf("Expected default sweep interval 1m, got %v", cfg.Locks.SweepInterval)
	}
	if cfg.Proof.Source != "discovery" {
		t.Errorf("Expected default proof source 'discovery', got %q", cfg.Proof.Source)
	}
	if cfg.Proof.Discovery["refresh_interval"] != "12h0m0s" {
		t.Errorf("Expected default refresh interval '12h0m0s', got %v", cfg.Proof.Discovery["refresh_interval"])
	}
	if cfg.Auth.Issuer != "wopihost" {
		t.Errorf("Expected default issuer 'wopihost', got %q", cfg.Auth.Issuer)
	}
	if cfg.Auth.TokenTTL != 10*time.Hour {
		t.Errorf("Expected default token TTL 10h, got %v", cfg.Auth.TokenTTL)
	}
}

func TestApplyDefaults_GC(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default GC interval 24h, got %v", cfg.GC.Interval)
	}
	if cfg.GC.Concurrency != 8 {
		t.Errorf("Expected default GC concurrency 8, got %d", cfg.GC.Concurrency)
	}
	if cfg.GC.Enabled {
		t.Error("ApplyDefaults should not turn on GC by itself")
	}
	if !GetDefaultConfig().GC.Enabled {
		t.Error("Expected GC enabled in the default config")
	}
}

func TestApplyDefaults_WOPI(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	w := cfg.Adapters.WOPI

	if w.Port != DefaultWOPIPort {
		t.Errorf("Expected default WOPI port %d, got %d", DefaultWOPIPort, w.Port)
	}
	if w.BasePath != "/wopi" {
		t.Errorf("Expected default base path '/wopi', got %q", w.BasePath)
	}
	if w.MetricsPath != "/metrics" {
		t.Errorf("Expected default metrics path '/metrics', got %q", w.MetricsPath)
	}
	if w.ReadTimeout != 5*time.Minute {
		t.Errorf("Expected default read_timeout 5m, got %v", w.ReadTimeout)
	}
	if w.WriteTimeout != 5*time.Minute {
		t.Errorf("Expected default write_timeout 5m, got %v", w.WriteTimeout)
	}
	if w.IdleTimeout != 2*time.Minute {
		t.Errorf("Expected default idle_timeout 2m, got %v", w.IdleTimeout)
	}
	if w.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", w.ShutdownTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "/var/log/wopihost.log",
		},
		Server: ServerConfig{
			ShutdownTimeout: 5 * time.Second,
		},
		Content: ContentConfig{
			Type:       "s3",
			Filesystem: map[string]any{"path": "/srv/content"},
			S3:         map[string]any{"region": "eu-west-1"},
		},
		Locks: LocksConfig{
			Type:          "badger",
			SweepInterval: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:         "office-host",
			TokenTTL:       time.Hour,
			AllowAnonymous: true,
		},
		Adapters: AdaptersConfig{
			WOPI: wopi.WOPIConfig{
				Port:        9000,
				BasePath:    "/custom",
				ReadTimeout: time.Minute,
			},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/wopihost.log" {
		t.Errorf("Expected output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s preserved, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Content.Type != "s3" {
		t.Errorf("Expected content type 's3' preserved, got %q", cfg.Content.Type)
	}
	if cfg.Content.Filesystem["path"] != "/srv/content" {
		t.Errorf("Expected filesystem path preserved, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Content.S3["region"] != "eu-west-1" {
		t.Errorf("Expected S3 region preserved, got %v", cfg.Content.S3["region"])
	}
	if cfg.Locks.Type != "badger" || cfg.Locks.SweepInterval != 10*time.Second {
		t.Errorf("Expected lock settings preserved, got %+v", cfg.Locks)
	}
	if cfg.Auth.Issuer != "office-host" || cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Expected auth settings preserved, got %+v", cfg.Auth)
	}
	if cfg.Adapters.WOPI.Port != 9000 {
		t.Errorf("Expected port 9000 preserved, got %d", cfg.Adapters.WOPI.Port)
	}
	if cfg.Adapters.WOPI.BasePath != "/custom" {
		t.Errorf("Expected base path '/custom' preserved, got %q", cfg.Adapters.WOPI.BasePath)
	}
	if cfg.Adapters.WOPI.ReadTimeout != time.Minute {
		t.Errorf("Expected read timeout 1m preserved, got %v", cfg.Adapters.WOPI.ReadTimeout)
	}
	if !cfg.Adapters.WOPI.AllowAnonymous {
		t.Error("Expected allow_anonymous to reach the WOPI adapter config")
	}
}

func TestGetDefaultConfig_IsValidWithSecret(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err == nil {
		t.Error("Expected default config without a secret to fail validation")
	}

	cfg.Auth.JWTSecret = testSecret
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config with a secret should be valid, got: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Metadata.RootName == "" {
		t.Error("Expected a root name")
	}
	if !cfg.UserInfo.Enabled {
		t.Error("Expected user info enabled")
	}
	if cfg.Adapters.WOPI.Capabilities != wopi.DefaultCapabilitiesConfig() {
		t.Errorf("Expected default capabilities, got %+v", cfg.Adapters.WOPI.Capabilities)
	}
}
