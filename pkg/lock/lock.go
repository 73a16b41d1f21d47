// Package lock implements the WOPI cooperative locking protocol.
//
// A lock is an opaque client-chosen token bound to one file ID. Locks expire
// exactly TTL after they were created or last refreshed. Expiry is evaluated
// lazily: any access that finds an expired lock treats it as absent and
// deletes it as a side effect, so no background goroutine is required.
//
// The Store contract is storage-agnostic (memory, badger); the Manager owns
// the state machine and serialises every read-modify-write sequence.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// TTL is the lifetime of a lock that is not refreshed.
const TTL = 30 * time.Minute

// MaxLockIDLength is the longest lock token accepted, in characters.
const MaxLockIDLength = 1024

// ErrInvalidLockID is returned for empty or oversized lock tokens.
var ErrInvalidLockID = errors.New("invalid lock id")

// Lock is an active claim on a file.
type Lock struct {
	FileID    string    `json:"file_id"`
	LockID    string    `json:"lock_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt returns the instant after which the lock is gone.
func (l *Lock) ExpiresAt() time.Time {
	return l.CreatedAt.Add(TTL)
}

// Expired reports whether the lock has expired at now. A lock is gone from
// the instant ExpiresAt is reached.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt())
}

// ValidateLockID checks a client-supplied token.
func ValidateLockID(lockID string) error {
	if lockID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLockID)
	}
	if utf8.RuneCountInString(lockID) > MaxLockIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidLockID, MaxLockIDLength)
	}
	return nil
}

// Store persists locks.
//
// Implementations need not be linearizable across methods: the Manager holds
// a store-wide mutex around every sequence of calls. Individual methods must
// still be safe for concurrent use (the sweeper runs alongside requests).
type Store interface {
	// TryGet returns the active lock for fileID, or nil. An expired entry is
	// deleted as a side effect and reported as nil.
	TryGet(ctx context.Context, fileID string) (*Lock, error)

	// Add creates a lock. The caller has verified that no active lock exists.
	Add(ctx context.Context, fileID, lockID string) (*Lock, error)

	// Refresh resets CreatedAt to now and, when newLockID is non-empty,
	// replaces the stored token. Returns false when no active lock exists.
	Refresh(ctx context.Context, fileID, newLockID string) (bool, error)

	// Remove deletes the lock. Returns false when no active lock existed.
	Remove(ctx context.Context, fileID string) (bool, error)

	// Sweep deletes every expired lock and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
