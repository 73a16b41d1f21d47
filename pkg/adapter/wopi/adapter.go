// Package wopi serves the WOPI protocol over HTTP as an adapter.Adapter.
package wopi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
	wopiproto "github.com/marmos91/wopihost/internal/protocol/wopi"
	"github.com/marmos91/wopihost/internal/ratelimiter"
	"github.com/marmos91/wopihost/pkg/adapter"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/metrics"
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/marmos91/wopihost/pkg/registry"
)

// Options carries the optional collaborators of the adapter.
type Options struct {
	// Metrics records request metrics. Nil disables collection.
	Metrics metrics.WOPIMetrics

	// ProofMetrics records proof validation outcomes. Nil disables
	// collection.
	ProofMetrics proof.Metrics

	// Permissions overrides the claims-based permission resolver.
	Permissions auth.PermissionResolver

	// CheckFileInfoHook post-processes CheckFileInfo responses.
	CheckFileInfoHook wopiproto.CheckFileInfoHook
}

// WOPIAdapter implements adapter.Adapter for the WOPI protocol.
//
// Routes:
//   - {BasePath}/...   WOPI operations behind proof and access-token checks
//   - /health          liveness probe, no authentication
//   - {MetricsPath}    Prometheus exposition, only when metrics are enabled
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown stops the listener and waits for in-flight
//     requests (bounded by ShutdownTimeout or the Stop context)
//  3. When the bound expires, remaining connections are closed
//
// Thread safety:
// All methods are safe for concurrent use; Stop is idempotent.
type WOPIAdapter struct {
	config WOPIConfig
	opts   Options

	registry *registry.Registry

	// mu protects server and stopped
	mu      sync.Mutex
	server  *http.Server
	stopped bool

	// boundPort is the port actually bound, which differs from
	// config.Port when that is 0
	boundPort atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error

	// ready is closed once the listener is bound
	ready chan struct{}
}

var _ adapter.Adapter = (*WOPIAdapter)(nil)

// New creates a WOPI adapter. Defaults are applied to zero config fields.
func New(config WOPIConfig, opts Options) *WOPIAdapter {
	config.ApplyDefaults()
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopWOPIMetrics()
	}
	a := &WOPIAdapter{
		config: config,
		opts:   opts,
		ready:  make(chan struct{}),
	}
	a.boundPort.Store(int32(config.Port))
	return a
}

// SetRegistry injects the shared collaborators.
func (a *WOPIAdapter) SetRegistry(reg *registry.Registry) {
	a.registry = reg
}

// Protocol returns "WOPI".
func (a *WOPIAdapter) Protocol() string {
	return "WOPI"
}

// Port returns the bound port once serving, the configured port before.
func (a *WOPIAdapter) Port() int {
	return int(a.boundPort.Load())
}

// Ready is closed once the listener is bound.
func (a *WOPIAdapter) Ready() <-chan struct{} {
	return a.ready
}

// Router builds the gin engine serving every route of the adapter. It is
// exposed for in-process tests; Serve uses it too.
func (a *WOPIAdapter) Router() (*gin.Engine, error) {
	// ========================================================================
	// Step 1: Check collaborators
	// ========================================================================

	reg := a.registry
	if reg == nil {
		return nil, fmt.Errorf("wopi adapter: registry not set")
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("wopi adapter: %w", err)
	}
	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("wopi adapter: %w", err)
	}

	// ========================================================================
	// Step 2: Auxiliary endpoints
	// ========================================================================

	engine := gin.New()
	engine.Use(recovery(), requestLogger())

	engine.GET("/health", a.health)
	if metrics.IsEnabled() {
		engine.GET(a.config.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	// ========================================================================
	// Step 3: WOPI routes behind rate limiting, proof and access-token checks
	// ========================================================================

	group := engine.Group(a.config.BasePath)
	if limiter := ratelimiter.New(a.config.RateLimit.RequestsPerSecond, a.config.RateLimit.Burst); limiter != nil {
		group.Use(rateLimit(limiter))
	}
	if keys := reg.ProofKeys(); keys != nil {
		validator := proof.NewValidator(proof.Config{Keys: keys, PublicURL: a.config.PublicURL})
		group.Use(proof.Middleware(validator, tokenFromContext, a.opts.ProofMetrics))
	} else {
		logger.Warn("WOPI proof validation disabled: requests are not authenticated as coming from the WOPI client")
	}
	group.Use(auth.Middleware(reg.TokenResolver(), a.config.AllowAnonymous))

	handler := wopiproto.NewHandler(wopiproto.Config{
		Provider:            reg.Provider(),
		Locks:               reg.LockManager(),
		Permissions:         a.opts.Permissions,
		UserInfo:            reg.UserInfoStore(),
		Checksums:           reg.ChecksumCache(),
		Capabilities:        a.config.Capabilities.toProtocol(),
		BaseURL:             a.config.baseURL(),
		HostViewURL:         a.config.HostViewURL,
		HostEditURL:         a.config.HostEditURL,
		BreadcrumbBrandName: a.config.BreadcrumbBrandName,
		EnforcePermissions:  a.config.EnforcePermissions,
		CheckFileInfoHook:   a.opts.CheckFileInfoHook,
		Metrics:             a.opts.Metrics,
	})
	handler.RegisterRoutes(group)

	return engine, nil
}

func tokenFromContext(c *gin.Context) string {
	return auth.TokenFromRequest(c.Request)
}

func (a *WOPIAdapter) health(c *gin.Context) {
	if _, err := a.registry.Provider().GetRootContainer(c.Request.Context()); err != nil {
		logger.Warn("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Serve binds the listener and serves until ctx is cancelled or Stop is
// called.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the router cannot be built, the listener cannot be bound or
//     the drain exceeded its bound
func (a *WOPIAdapter) Serve(ctx context.Context) error {
	router, err := a.Router()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(a.config.BindAddress, strconv.Itoa(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create WOPI listener on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	a.server = srv
	a.mu.Unlock()

	a.boundPort.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	close(a.ready)
	logger.Info("WOPI adapter listening on %s%s", listener.Addr(), a.config.BasePath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("WOPI shutdown signal received: %v", ctx.Err())
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			return err
		}
		<-serveErr
		return nil

	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			// Stop was called directly; wait for its drain to finish
			a.shutdownOnce.Do(func() {})
			return a.shutdownErr
		}
		return fmt.Errorf("WOPI server failed: %w", err)
	}
}

// Stop drains in-flight requests within ctx, then closes whatever is left.
// Safe to call before Serve, concurrently with it, and more than once.
func (a *WOPIAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		srv := a.server
		a.mu.Unlock()
		if srv == nil {
			return
		}

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("WOPI graceful shutdown incomplete, closing connections: %v", err)
			_ = srv.Close()
			a.shutdownErr = fmt.Errorf("WOPI shutdown: %w", err)
			return
		}
		logger.Debug("WOPI adapter drained")
	})
	return a.shutdownErr
}
