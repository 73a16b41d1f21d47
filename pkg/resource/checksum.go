package resource

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dgraph-io/ristretto/v2"
)

// ChecksumCache memoises SHA-256 content digests keyed by file ID and
// version. A new version produces a new key, so stale entries are never
// served; they simply age out of the cache.
type ChecksumCache struct {
	cache *ristretto.Cache[string, []byte]
}

// NewChecksumCache creates a cache holding up to maxEntries digests.
// maxEntries <= 0 disables caching.
func NewChecksumCache(maxEntries int64) (*ChecksumCache, error) {
	if maxEntries <= 0 {
		return &ChecksumCache{}, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checksum cache: %w", err)
	}
	return &ChecksumCache{cache: cache}, nil
}

func checksumKey(id, version string) string {
	return id + "@" + version
}

// Get returns the cached digest for (id, version).
func (c *ChecksumCache) Get(id, version string) ([]byte, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(checksumKey(id, version))
}

// Put stores a digest for (id, version).
func (c *ChecksumCache) Put(id, version string, sum []byte) {
	if c == nil || c.cache == nil || len(sum) == 0 {
		return
	}
	c.cache.Set(checksumKey(id, version), sum, 1)
	c.cache.Wait()
}

// ContentOpener is the subset of Provider needed to hash content.
type ContentOpener interface {
	OpenRead(ctx context.Context, id string) (*File, io.ReadCloser, error)
}

// Checksum returns the digest for f, consulting in order the value carried by
// f, the cache, and finally the content opened through p.
func (c *ChecksumCache) Checksum(ctx context.Context, p ContentOpener, f *File) ([]byte, error) {
	if len(f.Checksum) > 0 {
		return f.Checksum, nil
	}
	if sum, ok := c.Get(f.ID, f.Version); ok {
		return sum, nil
	}

	opened, r, err := p.OpenRead(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if len(opened.Checksum) > 0 {
		return opened.Checksum, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("failed to hash content of %s: %w", f.ID, err)
	}
	sum := h.Sum(nil)
	c.Put(opened.ID, opened.Version, sum)
	return sum, nil
}

// Close releases the cache resources.
func (c *ChecksumCache) Close() {
	if c != nil && c.cache != nil {
		c.cache.Close()
	}
}
