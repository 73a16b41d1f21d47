// Package gc removes orphaned content.
//
// Content is orphaned when a blob exists in the content store but no file
// node in the metadata store owns it. This can happen when:
//   - The host crashes between deleting a file's metadata and its content
//   - A content delete fails after the metadata delete succeeded
//   - Content was written for a node that was rolled back
//
// The provider always creates metadata before content and deletes metadata
// before content, so a blob whose ID does not resolve to a file node can never
// become live again and is safe to delete.
//
// Only IDs the host could have generated are candidates. A bucket or
// directory shared with other data may hold objects the host never wrote;
// those are counted as foreign and left alone.
package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/content"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the collection period when none is configured.
	DefaultInterval = 24 * time.Hour

	// DefaultConcurrency bounds parallel metadata lookups and deletes.
	DefaultConcurrency = 8

	// runTimeout caps a single background run.
	runTimeout = 10 * time.Minute

	// dryRunPreview is how many orphan IDs a dry run logs.
	dryRunPreview = 10
)

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection runs
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// Concurrency bounds parallel lookups and deletes (default: 8)
	Concurrency int

	// DryRun logs what would be deleted without deleting it
	DryRun bool

	// Owns reports whether a content ID could have been written by the host
	// (default: clock.IsUUID). Other IDs are never deleted.
	Owns func(id string) bool

	// Metrics observes runs. Optional.
	Metrics Metrics
}

// Metrics observes collection runs.
type Metrics interface {
	RecordRun(stats *Stats, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(*Stats, error) {}

// Collector performs periodic garbage collection on a content store.
//
// Thread Safety: Safe for concurrent use. Runs are serialised, so RunNow
// during a background run waits for it to finish.
type Collector struct {
	metadataStore metadata.Store
	contentStore  content.Store
	config        Config

	runMu    sync.Mutex
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector. It is not started; call Start to begin
// background collection.
func NewCollector(metadataStore metadata.Store, contentStore content.Store, config Config) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Owns == nil {
		config.Owns = clock.IsUUID
	}
	if config.Metrics == nil {
		config.Metrics = noopMetrics{}
	}

	return &Collector{
		metadataStore: metadataStore,
		contentStore:  contentStore,
		config:        config,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins background collection. Subsequent calls are no-ops, as is
// calling Start on a disabled collector.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return
	}
	c.started = true

	logger.Info("Starting garbage collector: interval=%s concurrency=%d dry_run=%v",
		c.config.Interval, c.config.Concurrency, c.config.DryRun)

	go c.worker()
}

// Stop signals the worker and waits for any in-progress run to finish, or
// for ctx to expire. Safe to call multiple times and before Start.
func (c *Collector) Stop(ctx context.Context) error {
	c.startMu.Lock()
	started := c.started
	c.startMu.Unlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	if !started {
		return nil
	}

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			go func() {
				select {
				case <-c.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats, err := c.run(ctx)
	stats.EndTime = time.Now()
	c.config.Metrics.RecordRun(stats, err)
	return stats, err
}

// run performs a single pass:
//  1. List every content ID in the content store and set aside foreign IDs
//  2. Resolve each remaining ID against the metadata store; IDs that do not
//     name a file node are orphaned
//  3. Delete orphans (unless DryRun)
func (c *Collector) run(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	// ========================================================================
	// Phase 1: List content
	// ========================================================================

	existing, err := c.contentStore.ListContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	owned := existing[:0:0]
	for _, id := range existing {
		if c.config.Owns(id) {
			owned = append(owned, id)
		}
	}
	stats.ForeignCount = stats.ExistingCount - uint64(len(owned))
	logger.Debug("GC: found %d content items (%d foreign)", stats.ExistingCount, stats.ForeignCount)

	// ========================================================================
	// Phase 2: Find orphans
	// ========================================================================

	orphaned, err := c.findOrphans(ctx, owned)
	if err != nil {
		return stats, err
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: dry run, would delete %d items", len(orphaned))
		for i, id := range orphaned {
			if i == dryRunPreview {
				logger.Info("  ... and %d more", len(orphaned)-dryRunPreview)
				break
			}
			logger.Info("  - %s", id)
		}
		return stats, nil
	}

	// ========================================================================
	// Phase 3: Delete orphans
	// ========================================================================

	var deleted, failed atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for _, id := range orphaned {
		g.Go(func() error {
			if err := c.contentStore.Delete(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Debug("GC: failed to delete %s: %v", id, err)
				failed.Add(1)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}

	err = g.Wait()
	stats.DeletedCount = deleted.Load()
	stats.FailedCount = failed.Load()
	return stats, err
}

func (c *Collector) findOrphans(ctx context.Context, ids []string) ([]string, error) {
	orphan := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for i, id := range ids {
		g.Go(func() error {
			n, err := c.metadataStore.Get(gctx, id)
			switch {
			case resource.IsNotFound(err):
				orphan[i] = true
			case err != nil:
				return fmt.Errorf("failed to resolve content %s: %w", id, err)
			case n.IsContainer():
				orphan[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var orphaned []string
	for i, id := range ids {
		if orphan[i] {
			orphaned = append(orphaned, id)
		}
	}
	return orphaned, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime     time.Time // When collection started
	EndTime       time.Time // When collection ended
	ExistingCount uint64    // Content items in the content store
	ForeignCount  uint64    // Items whose ID the host never generates
	OrphanedCount uint64    // Items not owned by any file
	DeletedCount  uint64    // Orphans deleted
	FailedCount   uint64    // Orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("existing=%d orphaned=%d deleted=%d failed=%d foreign=%d duration=%s",
		s.ExistingCount, s.OrphanedCount, s.DeletedCount, s.FailedCount, s.ForeignCount, s.Duration())
}
