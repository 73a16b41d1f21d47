// Package adapter defines the lifecycle contract between the server and the
// network front ends that expose the registry's collaborators to clients.
package adapter

import (
	"context"

	"github.com/marmos91/wopihost/pkg/registry"
)

// Adapter is a network front end managed by server.Server.
//
// Every adapter serves the same registry, so the WOPI endpoint and any
// auxiliary listener observe one lock table and one resource tree.
//
// Lifecycle:
//  1. Creation: the adapter is built from its configuration section
//  2. Registry injection: SetRegistry() hands over the shared collaborators
//  3. Startup: Serve() binds the listener and blocks until shutdown
//  4. Shutdown: Stop() drains in-flight requests within the context deadline
type Adapter interface {
	// Serve starts the adapter and blocks until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// When ctx is cancelled, Serve must stop accepting requests, let
	// in-flight requests finish (bounded by the adapter's shutdown timeout)
	// and return nil or context.Canceled.
	//
	// If Serve returns before cancellation, the server treats it as fatal
	// and stops every other adapter.
	Serve(ctx context.Context) error

	// SetRegistry injects the shared registry. Called exactly once, before
	// Serve; no synchronization needed.
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown. It must be idempotent and safe to
	// call concurrently with Serve. ctx bounds the drain; when it expires
	// remaining connections are closed.
	Stop(ctx context.Context) error

	// Protocol returns a constant human-readable name for logs, e.g. "WOPI".
	Protocol() string

	// Port returns the TCP port the adapter listens on. With a configured
	// port of 0 it returns the bound port once Serve has started, and 0
	// before.
	Port() int
}
