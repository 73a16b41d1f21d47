package lock

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/wopihost/internal/logger"
)

// Status is the outcome of a lock operation.
type Status int

const (
	// StatusUnknown is the zero value, carried by results returned alongside
	// an error. It is neither OK nor a conflict.
	StatusUnknown Status = iota

	// StatusOK means the operation was applied (or, for GetLock, answered).
	StatusOK

	// StatusConflict means the operation was refused; Result.Lock carries
	// the current lock, if any, and Result.Reason explains the refusal.
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Conflict reasons reported in the X-WOPI-LockFailureReason header.
const (
	ReasonMismatch  = "Lock mismatch"
	ReasonNotLocked = "File not locked"
)

// Operation names used for metrics and logs.
const (
	OpLock        = "LOCK"
	OpUnlock      = "UNLOCK"
	OpRefreshLock = "REFRESH_LOCK"
	OpGetLock     = "GET_LOCK"
)

// Result describes the outcome of a Manager operation.
type Result struct {
	Status Status

	// Lock is the lock in force after the operation: the new lock on
	// success, the conflicting lock on conflict, nil when the file is
	// unlocked.
	Lock *Lock

	// Reason is set on conflicts.
	Reason string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// LockID returns the current token or "" when unlocked.
func (r Result) LockID() string {
	if r.Lock == nil {
		return ""
	}
	return r.Lock.LockID
}

// Metrics observes lock outcomes. Optional.
type Metrics interface {
	ObserveLockOperation(operation string, status Status)
	RecordSweep(removed int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveLockOperation(string, Status) {}
func (noopMetrics) RecordSweep(int)                     {}

// Manager drives the per-file lock state machine:
//
//	State      Operation              Condition    Transition     Result
//	Unlocked   LOCK, no old token     -            Locked(new)    OK
//	Locked(L)  LOCK, no old token     new == L     refreshed      OK
//	Locked(L)  LOCK, no old token     new != L     unchanged      Conflict + L
//	Locked(L)  LOCK, old token        old == L     Locked(new)    OK (relock)
//	Locked(L)  LOCK, old token        old != L     unchanged      Conflict + L
//	Unlocked   LOCK, old token        -            unchanged      Conflict "not locked"
//	Locked(L)  UNLOCK                 tok == L     Unlocked       OK
//	Locked(L)  UNLOCK                 tok != L     unchanged      Conflict + L
//	Unlocked   UNLOCK                 -            unchanged      Conflict "not locked"
//	Locked(L)  REFRESH_LOCK           tok == L     createdAt=now  OK
//	Locked(L)  REFRESH_LOCK           tok != L     unchanged      Conflict + L
//	Unlocked   REFRESH_LOCK           -            unchanged      Conflict "not locked"
//	any        GET_LOCK               -            unchanged      OK + current or none
//
// Every operation runs under one store-wide mutex, so concurrent calls on the
// same file are linearised. Store operations are O(1), which keeps
// contention negligible.
type Manager struct {
	mu      sync.Mutex
	store   Store
	metrics Metrics
}

// NewManager creates a manager over store. metrics may be nil.
func NewManager(store Store, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Manager{store: store, metrics: metrics}
}

func (m *Manager) observe(op string, r Result) Result {
	m.metrics.ObserveLockOperation(op, r.Status)
	return r
}

func conflict(current *Lock, reason string) Result {
	return Result{Status: StatusConflict, Lock: current, Reason: reason}
}

// Lock acquires, refreshes or swaps (when oldLockID is non-empty) the lock
// on fileID.
func (m *Manager) Lock(ctx context.Context, fileID, lockID, oldLockID string) (Result, error) {
	if err := ValidateLockID(lockID); err != nil {
		return Result{}, err
	}
	if oldLockID != "" {
		if err := ValidateLockID(oldLockID); err != nil {
			return Result{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.TryGet(ctx, fileID)
	if err != nil {
		return Result{}, err
	}

	// ========================================================================
	// Unlock-and-relock: the old token must match the current lock
	// ========================================================================

	if oldLockID != "" {
		if current == nil {
			return m.observe(OpLock, conflict(nil, ReasonNotLocked)), nil
		}
		if current.LockID != oldLockID {
			return m.observe(OpLock, conflict(current, ReasonMismatch)), nil
		}
		return m.refresh(ctx, OpLock, fileID, lockID)
	}

	// ========================================================================
	// Plain LOCK
	// ========================================================================

	if current == nil {
		l, err := m.store.Add(ctx, fileID, lockID)
		if err != nil {
			return Result{}, err
		}
		logger.Debug("Lock acquired: file=%s", fileID)
		return m.observe(OpLock, Result{Status: StatusOK, Lock: l}), nil
	}
	if current.LockID != lockID {
		return m.observe(OpLock, conflict(current, ReasonMismatch)), nil
	}
	return m.refresh(ctx, OpLock, fileID, "")
}

// Unlock releases the lock when lockID matches.
func (m *Manager) Unlock(ctx context.Context, fileID, lockID string) (Result, error) {
	if err := ValidateLockID(lockID); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.TryGet(ctx, fileID)
	if err != nil {
		return Result{}, err
	}
	if current == nil {
		return m.observe(OpUnlock, conflict(nil, ReasonNotLocked)), nil
	}
	if current.LockID != lockID {
		return m.observe(OpUnlock, conflict(current, ReasonMismatch)), nil
	}

	if _, err := m.store.Remove(ctx, fileID); err != nil {
		return Result{}, err
	}
	logger.Debug("Lock released: file=%s", fileID)
	return m.observe(OpUnlock, Result{Status: StatusOK}), nil
}

// RefreshLock extends the lifetime of the lock when lockID matches.
func (m *Manager) RefreshLock(ctx context.Context, fileID, lockID string) (Result, error) {
	if err := ValidateLockID(lockID); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.TryGet(ctx, fileID)
	if err != nil {
		return Result{}, err
	}
	if current == nil {
		return m.observe(OpRefreshLock, conflict(nil, ReasonNotLocked)), nil
	}
	if current.LockID != lockID {
		return m.observe(OpRefreshLock, conflict(current, ReasonMismatch)), nil
	}
	return m.refresh(ctx, OpRefreshLock, fileID, "")
}

// GetLock reports the current lock; Result.Lock is nil when unlocked.
func (m *Manager) GetLock(ctx context.Context, fileID string) (Result, error) {
	current, err := m.Current(ctx, fileID)
	if err != nil {
		return Result{}, err
	}
	return m.observe(OpGetLock, Result{Status: StatusOK, Lock: current}), nil
}

// Current returns the active lock or nil. Used by write paths that must
// check lock agreement without changing state.
func (m *Manager) Current(ctx context.Context, fileID string) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.TryGet(ctx, fileID)
}

// refresh re-stamps the lock and reloads it. Caller holds mu.
func (m *Manager) refresh(ctx context.Context, op, fileID, newLockID string) (Result, error) {
	ok, err := m.store.Refresh(ctx, fileID, newLockID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Unreachable while mu is held; TryGet just saw the lock
		return m.observe(op, conflict(nil, ReasonNotLocked)), nil
	}

	l, err := m.store.TryGet(ctx, fileID)
	if err != nil {
		return Result{}, err
	}
	return m.observe(op, Result{Status: StatusOK, Lock: l}), nil
}

// Sweep removes expired locks. Advisory only; expiry is also lazy.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed, err := m.store.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	m.metrics.RecordSweep(removed)
	return removed, nil
}

// StartSweeper runs Sweep every interval until ctx is cancelled. The
// returned channel is closed when the goroutine exits.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := m.Sweep(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("Lock sweep failed: %v", err)
					}
					continue
				}
				if removed > 0 {
					logger.Debug("Lock sweep removed %d expired locks", removed)
				}
			}
		}
	}()

	return done
}
