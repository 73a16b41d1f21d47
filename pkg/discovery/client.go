// Package discovery fetches and caches the WOPI client's discovery document,
// which publishes the supported file extensions, the action URLs and the
// proof keys used to authenticate requests.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/proof"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshInterval is how long a fetched document is served before it
// is fetched again.
const DefaultRefreshInterval = 12 * time.Hour

// MinRefetchInterval is how soon after a fetch Invalidate may force another.
const MinRefetchInterval = time.Minute

// Config configures a Client.
type Config struct {
	// URL of the discovery document, e.g.
	// "https://office.example.com/hosting/discovery".
	URL string

	RefreshInterval time.Duration

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	Clock clock.Clock
}

// Client serves the discovery document from a cache, refreshing it when
// stale. Concurrent refreshes collapse into one fetch. When a refresh fails
// the stale document keeps being served, so a flapping client does not take
// proof validation down with it.
type Client struct {
	url     string
	refresh time.Duration
	http    *http.Client
	clock   clock.Clock

	group singleflight.Group

	mu        sync.RWMutex
	doc       *Document
	keys      proof.KeySet
	fetchedAt time.Time
}

var (
	_ proof.KeyProvider  = (*Client)(nil)
	_ proof.KeyRefresher = (*Client)(nil)
)

// NewClient creates a client. Nothing is fetched until first use.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("discovery url is required")
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		url:     cfg.URL,
		refresh: refresh,
		http:    httpClient,
		clock:   clock.OrReal(cfg.Clock),
	}, nil
}

type snapshot struct {
	doc  *Document
	keys proof.KeySet
}

// cached returns the cached snapshot and whether it is fresh.
func (c *Client) cached() (snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return snapshot{}, false
	}
	fresh := c.clock.Now().Sub(c.fetchedAt) < c.refresh
	return snapshot{doc: c.doc, keys: c.keys}, fresh
}

func (c *Client) load(ctx context.Context) (snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot{}, err
	}

	snap, fresh := c.cached()
	if fresh {
		return snap, nil
	}

	// The fetch is shared by concurrent callers, so it must not be
	// cancelled by the one that happened to start it.
	ch := c.group.DoChan("discovery", func() (interface{}, error) {
		// Another flight may have finished between our check and here
		if snap, fresh := c.cached(); fresh {
			return snap, nil
		}
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if snap.doc != nil {
				logger.Warn("Discovery refresh failed, serving stale document: %v", res.Err)
				return snap, nil
			}
			return snapshot{}, res.Err
		}
		return res.Val.(snapshot), nil
	}
}

func (c *Client) fetch(ctx context.Context) (snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to build discovery request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot{}, fmt.Errorf("discovery endpoint returned %s", resp.Status)
	}

	doc, err := Parse(resp.Body)
	if err != nil {
		return snapshot{}, err
	}
	keys, err := proofKeys(doc)
	if err != nil {
		return snapshot{}, err
	}

	c.mu.Lock()
	c.doc = doc
	c.keys = keys
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()

	logger.Info("Discovery document loaded: %d extensions, old proof key=%v", len(doc.Extensions()), keys.Old != nil)
	return snapshot{doc: doc, keys: keys}, nil
}

func proofKeys(doc *Document) (proof.KeySet, error) {
	if doc.ProofKey == nil {
		return proof.KeySet{}, fmt.Errorf("discovery document has no proof-key")
	}

	current, err := proof.ParseKey(doc.ProofKey.Modulus, doc.ProofKey.Exponent)
	if err != nil {
		return proof.KeySet{}, fmt.Errorf("discovery proof key: %w", err)
	}

	keys := proof.KeySet{Current: current}
	if doc.ProofKey.OldModulus != "" {
		old, err := proof.ParseKey(doc.ProofKey.OldModulus, doc.ProofKey.OldExponent)
		if err != nil {
			return proof.KeySet{}, fmt.Errorf("discovery old proof key: %w", err)
		}
		keys.Old = old
	}
	return keys, nil
}

// ProofKeys implements proof.KeyProvider.
func (c *Client) ProofKeys(ctx context.Context) (proof.KeySet, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return proof.KeySet{}, err
	}
	return snap.keys, nil
}

// Invalidate forces the next call to refetch, unless the document was
// fetched less than MinRefetchInterval ago. It reports whether it did.
func (c *Client) Invalidate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc != nil && c.clock.Now().Sub(c.fetchedAt) < MinRefetchInterval {
		return false
	}
	c.fetchedAt = time.Time{}
	return true
}
