package lock

import (
	"context"
	"sync"

	"github.com/marmos91/wopihost/internal/clock"
)

// MemoryStore is the default in-process lock store.
//
// Locks do not survive a restart. Clients recover by relocking, which the
// protocol tolerates.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]Lock
	clock clock.Clock
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil clock uses real time.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]Lock),
		clock: clock.OrReal(c),
	}
}

// active returns the live lock for fileID, purging it if expired. Caller holds mu.
func (s *MemoryStore) active(fileID string) (Lock, bool) {
	l, ok := s.locks[fileID]
	if !ok {
		return Lock{}, false
	}
	if l.Expired(s.clock.Now()) {
		delete(s.locks, fileID)
		return Lock{}, false
	}
	return l, true
}

func (s *MemoryStore) TryGet(ctx context.Context, fileID string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.active(fileID)
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *MemoryStore) Add(ctx context.Context, fileID, lockID string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := Lock{FileID: fileID, LockID: lockID, CreatedAt: s.clock.Now()}
	s.locks[fileID] = l
	return &l, nil
}

func (s *MemoryStore) Refresh(ctx context.Context, fileID, newLockID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.active(fileID)
	if !ok {
		return false, nil
	}
	if newLockID != "" {
		l.LockID = newLockID
	}
	l.CreatedAt = s.clock.Now()
	s.locks[fileID] = l
	return true, nil
}

func (s *MemoryStore) Remove(ctx context.Context, fileID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active(fileID); !ok {
		return false, nil
	}
	delete(s.locks, fileID)
	return true, nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, l := range s.locks {
		if l.Expired(now) {
			delete(s.locks, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
