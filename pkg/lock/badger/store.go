// Package badger implements a persistent lock.Store on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/lock"
)

// Key Namespace
// =============
//
// Data Type   Prefix    Key Format         Value Type
// ======================================================
// Lock        "lock:"   lock:<fileID>      lock.Lock (JSON)
//
// Entries are written with a Badger TTL slightly longer than lock.TTL so that
// abandoned locks are eventually garbage collected by Badger itself. The TTL
// is a storage hint only: expiry is always decided against the store clock.
const prefixLock = "lock:"

// ttlGrace is added to lock.TTL for the Badger entry TTL.
const ttlGrace = 5 * time.Minute

func keyLock(fileID string) []byte {
	return []byte(prefixLock + fileID)
}

// BadgerLockStore persists locks so they survive a host restart.
//
// Thread Safety:
// Every method runs in a single Badger transaction. The lock.Manager
// serialises multi-call sequences.
type BadgerLockStore struct {
	db     *badger.DB
	ownsDB bool
	clock  clock.Clock
}

var _ lock.Store = (*BadgerLockStore)(nil)

// BadgerLockStoreConfig contains configuration for the Badger lock store.
type BadgerLockStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Ignored when DB is set.
	DBPath string

	// InMemory runs Badger without touching disk. Intended for tests.
	InMemory bool

	// DB shares an already open database (for example the metadata
	// store's). The store does not close a shared DB.
	DB *badger.DB

	Clock clock.Clock
}

// NewBadgerLockStore opens (or creates) a Badger lock store.
func NewBadgerLockStore(ctx context.Context, cfg BadgerLockStoreConfig) (*BadgerLockStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store := &BadgerLockStore{db: cfg.DB, clock: clock.OrReal(cfg.Clock)}
	if store.db != nil {
		return store, nil
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger lock store requires a db path")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	store.db = db
	store.ownsDB = true

	logger.Debug("Badger lock store ready: path=%s in_memory=%v", cfg.DBPath, cfg.InMemory)
	return store, nil
}

// Close closes the database unless it is shared.
func (s *BadgerLockStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// ============================================================================
// Transaction helpers
// ============================================================================

func decodeLock(val []byte) (*lock.Lock, error) {
	var l lock.Lock
	if err := json.Unmarshal(val, &l); err != nil {
		return nil, fmt.Errorf("failed to decode lock: %w", err)
	}
	return &l, nil
}

func putLock(txn *badger.Txn, l *lock.Lock) error {
	val, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lock: %w", err)
	}
	entry := badger.NewEntry(keyLock(l.FileID), val).WithTTL(lock.TTL + ttlGrace)
	if err := txn.SetEntry(entry); err != nil {
		return fmt.Errorf("failed to store lock: %w", err)
	}
	return nil
}

// active loads the live lock for fileID inside txn, deleting it if expired.
// Returns nil when no live lock exists.
func (s *BadgerLockStore) active(txn *badger.Txn, fileID string) (*lock.Lock, error) {
	item, err := txn.Get(keyLock(fileID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	var l *lock.Lock
	if err := item.Value(func(val []byte) error {
		l, err = decodeLock(val)
		return err
	}); err != nil {
		return nil, err
	}

	if l.Expired(s.clock.Now()) {
		if err := txn.Delete(keyLock(fileID)); err != nil {
			return nil, fmt.Errorf("failed to delete expired lock: %w", err)
		}
		return nil, nil
	}
	return l, nil
}

// ============================================================================
// lock.Store
// ============================================================================

func (s *BadgerLockStore) TryGet(ctx context.Context, fileID string) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var l *lock.Lock
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		l, err = s.active(txn, fileID)
		return err
	})
	return l, err
}

func (s *BadgerLockStore) Add(ctx context.Context, fileID, lockID string) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &lock.Lock{FileID: fileID, LockID: lockID, CreatedAt: s.clock.Now()}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return putLock(txn, l)
	}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *BadgerLockStore) Refresh(ctx context.Context, fileID, newLockID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		l, err := s.active(txn, fileID)
		if err != nil || l == nil {
			return err
		}
		if newLockID != "" {
			l.LockID = newLockID
		}
		l.CreatedAt = s.clock.Now()
		found = true
		return putLock(txn, l)
	})
	return found, err
}

func (s *BadgerLockStore) Remove(ctx context.Context, fileID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		l, err := s.active(txn, fileID)
		if err != nil || l == nil {
			return err
		}
		found = true
		return txn.Delete(keyLock(fileID))
	})
	return found, err
}

func (s *BadgerLockStore) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// ========================================================================
	// Step 1: Collect expired keys
	// ========================================================================

	now := s.clock.Now()
	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLock)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				l, err := decodeLock(val)
				if err != nil {
					return err
				}
				if l.Expired(now) {
					expired = append(expired, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan locks: %w", err)
	}

	// ========================================================================
	// Step 2: Delete them
	// ========================================================================

	if len(expired) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}
	return len(expired), nil
}
