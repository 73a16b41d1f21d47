package config

import (
	"strings"
	"testing"
)

// validConfig returns the default configuration with a usable secret.
func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Auth.JWTSecret = testSecret
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStoreTypes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"content", func(c *Config) { c.Content.Type = "ftp" }},
		{"metadata", func(c *Config) { c.Metadata.Type = "postgres" }},
		{"locks", func(c *Config) { c.Locks.Type = "redis" }},
		{"proof source", func(c *Config) { c.Proof.Source = "file" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("Expected validation error for invalid %s type", tt.name)
			}
		})
	}
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = "short"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for short jwt secret")
	}
	if !strings.Contains(err.Error(), "JWTSecret") {
		t.Errorf("Expected error to name JWTSecret, got: %v", err)
	}
}

func TestValidate_InvalidWOPIPort(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.WOPI.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for port > 65535")
	}
}

func TestValidate_NegativePort(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.WOPI.Port = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative port")
	}
}

func TestValidate_InvalidShutdownTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ShutdownTimeout = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
	if !strings.Contains(err.Error(), "ShutdownTimeout") {
		t.Errorf("Expected error to name ShutdownTimeout, got: %v", err)
	}
}

func TestValidate_NegativeChecksumCache(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ChecksumCacheEntries = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative checksum cache size")
	}
}

func TestValidate_NoAdaptersEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.WOPI.Enabled = false

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when no adapters enabled")
	}
	if !strings.Contains(err.Error(), "at least one adapter") {
		t.Errorf("Expected 'at least one adapter' error, got: %v", err)
	}
}

func TestValidate_BasePathCollision(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.WOPI.BasePath = "/metrics"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when base path collides with metrics path")
	}
	if !strings.Contains(err.Error(), "adapters.wopi") {
		t.Errorf("Expected error prefixed with 'adapters.wopi', got: %v", err)
	}
}

func TestValidate_PublicURL(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.WOPI.PublicURL = "https://wopi.example.com/sub"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for public URL with a path")
	}

	cfg.Adapters.WOPI.PublicURL = "https://wopi.example.com"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected bare public URL to be valid, got: %v", err)
	}
}

func TestValidate_BadgerLocksNeedStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Locks.Type = "badger"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for badger locks without db_path on memory metadata")
	}

	cfg.Metadata.Type = "badger"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected shared badger database to be valid, got: %v", err)
	}

	cfg.Metadata.Type = "memory"
	cfg.Locks.Badger["db_path"] = "/var/lib/wopihost/locks"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected dedicated lock database to be valid, got: %v", err)
	}
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Content.Type = "s3"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for s3 content without a bucket")
	}

	cfg.Content.S3["bucket"] = "documents"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected s3 content with a bucket to be valid, got: %v", err)
	}
}

func TestValidate_ProofSources(t *testing.T) {
	cfg := validConfig()
	cfg.Proof.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for discovery proof without url")
	}

	cfg.Proof.Discovery["url"] = "https://office.example.com/hosting/discovery"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected discovery proof with url to be valid, got: %v", err)
	}

	cfg.Proof.Source = "static"
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for static proof without keys")
	}

	cfg.Proof.Static["modulus"] = "AQAB"
	cfg.Proof.Static["exponent"] = "AQAB"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected static proof with keys to be valid, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error", "DEBUG", "INFO"}

	for _, level := range levels {
		cfg := validConfig()
		cfg.Logging.Level = level
		ApplyDefaults(cfg)

		if err := Validate(cfg); err != nil {
			t.Errorf("Expected level %q to be valid after normalization, got: %v", level, err)
		}
		if cfg.Logging.Level != strings.ToUpper(level) {
			t.Errorf("Expected level normalized to %q, got %q", strings.ToUpper(level), cfg.Logging.Level)
		}
	}
}
