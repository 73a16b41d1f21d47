package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/wopihost/pkg/store/content"
)

// MemoryContentStore implements content.Store using in-memory storage.
//
// Characteristics:
//   - Fast: All operations are memory-speed
//   - Volatile: Data lost on restart
//   - Memory-bound: Limited by available RAM
//   - Thread-safe: Protected by RWMutex
//
// Writes are buffered completely before being published, so a cancelled
// write leaves the previous content untouched.
type MemoryContentStore struct {
	// data stores the actual file content keyed by node ID
	data map[string][]byte

	// mu protects concurrent access to data map
	mu sync.RWMutex
}

// NewMemoryContentStore creates a new in-memory content store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data: make(map[string][]byte),
	}, nil
}

// ReadContent returns a reader over a snapshot of the stored bytes.
func (s *MemoryContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}

	// Stored slices are never mutated in place, so sharing them is safe
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteContent buffers r completely and then replaces the stored bytes.
func (s *MemoryContentStore) WriteContent(ctx context.Context, id string, r io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Buffer the incoming stream
	// ========================================================================

	var buf bytes.Buffer
	n, err := io.Copy(&buf, content.NewContextReader(ctx, r))
	if err != nil {
		return n, fmt.Errorf("failed to buffer content %s: %w", id, err)
	}

	// ========================================================================
	// Step 2: Publish
	// ========================================================================

	s.mu.Lock()
	s.data[id] = buf.Bytes()
	s.mu.Unlock()

	return n, nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[id]
	return ok, nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

func (s *MemoryContentStore) ListContent(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
