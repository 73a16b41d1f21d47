// Package registry holds the collaborators a running WOPI host is built
// from, so that adapters receive one value instead of a dozen constructor
// arguments.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store"
	"github.com/marmos91/wopihost/pkg/store/content"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	"github.com/marmos91/wopihost/pkg/userinfo"
)

// Registry manages the shared resources of the host: the stores behind the
// resource provider, the lock manager, the user info store, the checksum
// cache, the access-token resolver and the proof key source.
//
// Registration happens once at startup (see config.CreateRegistry); after
// that the registry is read-only and every getter is safe for concurrent
// use.
//
// Resources that hold OS handles register a closer. Close releases them in
// reverse registration order, so a store opened after the database it shares
// is closed before that database.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.SetStores(metaStore, contentStore)
//	reg.SetLockManager(lock.NewManager(lock.NewMemoryStore(nil), nil))
//	reg.SetTokenResolver(resolver)
//	if err := reg.Validate(); err != nil { ... }
//	defer reg.Close()
type Registry struct {
	mu sync.RWMutex

	metadata  metadata.Store
	content   content.Store
	provider  *store.Provider
	locks     *lock.Manager
	userInfo  userinfo.Store
	checksums *resource.ChecksumCache
	tokens    auth.TokenResolver
	proofKeys proof.KeyProvider

	closers []namedCloser
	closed  bool
}

type namedCloser struct {
	name  string
	close func() error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetStores registers the metadata and content stores and composes the
// resource provider over them. The metadata store is closed by Close.
func (r *Registry) SetStores(metadataStore metadata.Store, contentStore content.Store) error {
	if metadataStore == nil {
		return fmt.Errorf("cannot register nil metadata store")
	}
	if contentStore == nil {
		return fmt.Errorf("cannot register nil content store")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider != nil {
		return fmt.Errorf("stores already registered")
	}

	r.metadata = metadataStore
	r.content = contentStore
	r.provider = store.NewProvider(metadataStore, contentStore)
	r.closers = append(r.closers, namedCloser{name: "metadata store", close: metadataStore.Close})
	return nil
}

// SetLockManager registers the lock manager.
func (r *Registry) SetLockManager(m *lock.Manager) error {
	if m == nil {
		return fmt.Errorf("cannot register nil lock manager")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.locks = m
	return nil
}

// SetUserInfoStore registers the user info store. Optional.
func (r *Registry) SetUserInfoStore(s userinfo.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userInfo = s
}

// SetChecksumCache registers the checksum cache; Close releases it.
func (r *Registry) SetChecksumCache(c *resource.ChecksumCache) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checksums = c
	if c != nil {
		r.closers = append(r.closers, namedCloser{name: "checksum cache", close: func() error {
			c.Close()
			return nil
		}})
	}
}

// SetTokenResolver registers the access-token resolver.
func (r *Registry) SetTokenResolver(t auth.TokenResolver) error {
	if t == nil {
		return fmt.Errorf("cannot register nil token resolver")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = t
	return nil
}

// SetProofKeys registers the proof key source. A nil source disables proof
// validation.
func (r *Registry) SetProofKeys(k proof.KeyProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.proofKeys = k
}

// AddCloser registers a cleanup function run by Close.
func (r *Registry) AddCloser(name string, fn func() error) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

// ============================================================================
// Getters
// ============================================================================

// Provider returns the resource provider, or nil before SetStores.
func (r *Registry) Provider() *store.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provider
}

func (r *Registry) MetadataStore() metadata.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metadata
}

func (r *Registry) ContentStore() content.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.content
}

func (r *Registry) LockManager() *lock.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locks
}

func (r *Registry) UserInfoStore() userinfo.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userInfo
}

func (r *Registry) ChecksumCache() *resource.ChecksumCache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checksums
}

func (r *Registry) TokenResolver() auth.TokenResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokens
}

// ProofKeys returns the proof key source, or nil when proof validation is
// disabled.
func (r *Registry) ProofKeys() proof.KeyProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proofKeys
}

// Validate checks that every required collaborator is registered.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	if r.provider == nil {
		missing = append(missing, "stores")
	}
	if r.locks == nil {
		missing = append(missing, "lock manager")
	}
	if r.tokens == nil {
		missing = append(missing, "token resolver")
	}
	if len(missing) > 0 {
		return fmt.Errorf("registry incomplete: missing %v", missing)
	}
	return nil
}

// Close runs every registered closer in reverse order. All closers run even
// when some fail; their errors are joined. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.close(); err != nil {
			logger.Warn("Failed to close %s: %v", c.name, err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			continue
		}
		logger.Debug("Closed %s", c.name)
	}
	return errors.Join(errs...)
}
