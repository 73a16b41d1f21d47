package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/adapter"
	"github.com/marmos91/wopihost/pkg/registry"
)

// DefaultShutdownTimeout bounds the Stop() calls issued during shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Options tunes the server lifecycle. Zero values select defaults.
type Options struct {
	// ShutdownTimeout bounds the drain of every adapter on shutdown.
	ShutdownTimeout time.Duration

	// SweepInterval runs the advisory lock sweeper at this period while
	// serving. Zero disables the sweeper; expiry stays lazy either way.
	SweepInterval time.Duration
}

// Server manages the lifecycle of the adapters that expose one registry.
//
// Lifecycle:
//  1. Creation: New() with the registry
//  2. Registration: AddAdapter() for each front end
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation stops all adapters in reverse order
//
// Thread safety:
// Server is safe for concurrent use. Serve() may only be called once; a
// second call returns an error.
//
// Example usage:
//
//	srv := New(reg, Options{SweepInterval: time.Minute})
//	srv.AddAdapter(wopi.New(wopiConfig, wopi.Options{}))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	registry *registry.Registry
	opts     Options

	// mu protects adapters and served
	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool
}

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve already called")

// New creates a server over reg.
//
// Panics if reg is nil (programmer error).
func New(reg *registry.Registry, opts Options) *Server {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		registry: reg,
		opts:     opts,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the registry into a and registers it.
//
// Two adapters may not share a protocol name or a fixed port (port 0 means
// "pick one" and never conflicts).
//
// Panics if a is nil.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add %s adapter after Serve() has been called", a.Protocol())
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetRegistry(s.registry)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and blocks until ctx is cancelled or
// an adapter fails.
//
// On shutdown every adapter receives Stop() in reverse registration order,
// bounded by Options.ShutdownTimeout, and Serve waits for all of them.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by cancellation
//   - the first adapter error when an adapter failed on its own
//   - an error if no adapter is registered or Serve was already called
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	return s.serve(ctx, adapters)
}

func (s *Server) serve(ctx context.Context, adapters []adapter.Adapter) error {
	logger.Info("Starting WOPI host with %d adapter(s)", len(adapters))

	// ========================================================================
	// Step 1: Background lock sweeper
	// ========================================================================

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()

	if locks := s.registry.LockManager(); locks != nil && s.opts.SweepInterval > 0 {
		sweeperDone := locks.StartSweeper(sweepCtx, s.opts.SweepInterval)
		defer func() {
			stopSweeper()
			<-sweeperDone
		}()
		logger.Debug("Lock sweeper running every %s", s.opts.SweepInterval)
	}

	// ========================================================================
	// Step 2: Start adapters
	// ========================================================================

	// Buffered so failing adapters never block on send
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter", protocol)

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped gracefully", protocol)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	// ========================================================================
	// Step 3: Wait for cancellation or failure
	// ========================================================================

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("WOPI host stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals every adapter to stop, newest first. Errors are
// logged; the remaining adapters are still stopped.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
