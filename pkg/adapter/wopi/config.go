package wopi

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	wopiproto "github.com/marmos91/wopihost/internal/protocol/wopi"
)

// WOPIConfig holds configuration parameters for the WOPI HTTP endpoint.
//
// Default values (applied by ApplyDefaults if zero):
//   - BasePath: /wopi
//   - MetricsPath: /metrics
//   - ReadTimeout: 5m (PutFile bodies can be large)
//   - WriteTimeout: 5m (GetFile bodies can be large)
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - RateLimit.Burst: RequestsPerSecond rounded up, when limiting is on
type WOPIConfig struct {
	// Enabled controls whether the WOPI adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the interface to listen on; empty listens on all.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port. The config loader defaults it to 8880; an
	// adapter built with Port 0 binds a free port and reports it via Port().
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// BasePath mounts the WOPI routes, e.g. /wopi/files/{id}.
	BasePath string `mapstructure:"base_path" yaml:"base_path" validate:"required,startswith=/"`

	// PublicURL is the externally visible origin of the host, e.g.
	// "https://wopi.example.com". It is used to rebuild the URL the client
	// signed for proof validation and to build absolute URLs in responses.
	// Empty derives both from each request.
	PublicURL string `mapstructure:"public_url" yaml:"public_url" validate:"omitempty,url"`

	// MetricsPath serves Prometheus metrics when metrics are enabled.
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path" validate:"required,startswith=/"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// HostViewURL and HostEditURL are host page templates; "{id}" is
	// replaced by the file ID.
	HostViewURL string `mapstructure:"host_view_url" yaml:"host_view_url"`
	HostEditURL string `mapstructure:"host_edit_url" yaml:"host_edit_url"`

	BreadcrumbBrandName string `mapstructure:"breadcrumb_brand_name" yaml:"breadcrumb_brand_name"`

	// EnforcePermissions answers 401 to mutations the principal lacks the
	// permission for. When false permissions are advisory only.
	EnforcePermissions bool `mapstructure:"enforce_permissions" yaml:"enforce_permissions"`

	// AllowAnonymous treats requests without an access token as anonymous
	// instead of rejecting them. Populated from the auth section.
	AllowAnonymous bool `mapstructure:"-" yaml:"-"`

	Capabilities CapabilitiesConfig `mapstructure:"capabilities" yaml:"capabilities"`

	// RateLimit throttles WOPI requests per client address. /health and
	// the metrics endpoint are exempt.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client token buckets. A zero
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"min=0"`
}

// CapabilitiesConfig toggles the capability flags asserted in CheckFileInfo.
type CapabilitiesConfig struct {
	SupportsExtendedLockLength bool `mapstructure:"supports_extended_lock_length" yaml:"supports_extended_lock_length"`
	SupportsUpdate             bool `mapstructure:"supports_update" yaml:"supports_update"`
	SupportsRename             bool `mapstructure:"supports_rename" yaml:"supports_rename"`
	SupportsDeleteFile         bool `mapstructure:"supports_delete_file" yaml:"supports_delete_file"`
	SupportsContainers         bool `mapstructure:"supports_containers" yaml:"supports_containers"`
	SupportsEcosystem          bool `mapstructure:"supports_ecosystem" yaml:"supports_ecosystem"`
}

// DefaultCapabilitiesConfig enables every capability the handlers implement.
func DefaultCapabilitiesConfig() CapabilitiesConfig {
	c := wopiproto.DefaultCapabilities()
	return CapabilitiesConfig{
		SupportsExtendedLockLength: c.SupportsExtendedLockLength,
		SupportsUpdate:             c.SupportsUpdate,
		SupportsRename:             c.SupportsRename,
		SupportsDeleteFile:         c.SupportsDeleteFile,
		SupportsContainers:         c.SupportsContainers,
		SupportsEcosystem:          c.SupportsEcosystem,
	}
}

func (c CapabilitiesConfig) toProtocol() wopiproto.Capabilities {
	return wopiproto.Capabilities{
		SupportsExtendedLockLength: c.SupportsExtendedLockLength,
		SupportsUpdate:             c.SupportsUpdate,
		SupportsRename:             c.SupportsRename,
		SupportsDeleteFile:         c.SupportsDeleteFile,
		SupportsContainers:         c.SupportsContainers,
		SupportsEcosystem:          c.SupportsEcosystem,
	}
}

// ApplyDefaults fills zero fields. Port is left alone: 0 asks the kernel
// for a free port.
func (c *WOPIConfig) ApplyDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/wopi"
	}
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(math.Ceil(c.RateLimit.RequestsPerSecond))
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
}

// Validate checks the values struct tags cannot express.
func (c *WOPIConfig) Validate() error {
	if c.BasePath == c.MetricsPath || c.BasePath == "/health" {
		return fmt.Errorf("base_path %q collides with an auxiliary endpoint", c.BasePath)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public_url %q must be an absolute http(s) URL", c.PublicURL)
		}
		if u.Path != "" && u.Path != "/" {
			return fmt.Errorf("public_url %q must not carry a path; use base_path", c.PublicURL)
		}
	}
	return nil
}

// baseURL is the absolute WOPI root, or "" to derive it per request.
func (c *WOPIConfig) baseURL() string {
	if c.PublicURL == "" {
		return ""
	}
	return c.PublicURL + c.BasePath
}
