package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// The resource tree survives restarts, so file IDs handed to WOPI clients
// stay valid across host upgrades. See keys.go for the key schema.
//
// Thread Safety:
// Mutations are serialised by mu so that read-check-write sequences (name
// collision checks, non-empty checks) never race inside Badger's optimistic
// transactions. Reads run concurrently.
type BadgerMetadataStore struct {
	mu     sync.RWMutex
	db     *badger.DB
	rootID string

	clock clock.Clock
	ids   clock.IDGenerator
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string

	// InMemory runs Badger without touching disk. Intended for tests.
	InMemory bool

	// RootName names the root container on first initialisation.
	RootName string

	// BadgerOptions allows full customisation of BadgerDB behavior.
	// If nil, defaults tuned for small metadata values are used.
	BadgerOptions *badger.Options

	Clock       clock.Clock
	IDGenerator clock.IDGenerator
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// On first open the root container is created and its ID persisted; later
// opens reuse it.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Prepare BadgerDB options
	// ========================================================================

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}
	if config.BadgerOptions == nil {
		opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise
		opts = opts.WithCompression(options.None)    // Values are small JSON documents
	}

	// ========================================================================
	// Step 2: Open BadgerDB
	// ========================================================================

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	store := &BadgerMetadataStore{
		db:    db,
		clock: clock.OrReal(config.Clock),
		ids:   clock.OrUUID(config.IDGenerator),
	}

	// ========================================================================
	// Step 3: Ensure the root container exists
	// ========================================================================

	if err := store.initializeRoot(config.RootName); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root container: %w", err)
	}

	logger.Debug("Badger metadata store ready: path=%s in_memory=%v root=%s", config.DBPath, config.InMemory, store.rootID)
	return store, nil
}

func (s *BadgerMetadataStore) initializeRoot(name string) error {
	if name == "" {
		name = metadata.DefaultRootName
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRoot())
		if err == nil {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			s.rootID = string(val)
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		root := &metadata.Node{
			ID:      s.ids.New(),
			Name:    name,
			Kind:    resource.KindContainer,
			ModTime: s.clock.Now(),
			Version: 1,
		}
		if err := putNode(txn, root); err != nil {
			return err
		}
		s.rootID = root.ID
		return txn.Set(keyRoot(), []byte(root.ID))
	})
}

// Close closes the underlying database.
func (s *BadgerMetadataStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database so that the lock and user info stores
// can share it. Callers must not close it; Close on the metadata store does.
func (s *BadgerMetadataStore) DB() *badger.DB {
	return s.db
}

// ============================================================================
// Transaction helpers
// ============================================================================

func getNode(txn *badger.Txn, id string) (*metadata.Node, error) {
	item, err := txn.Get(keyFile(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, resource.NewError(resource.ErrNotFound, id, "node not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	var node *metadata.Node
	err = item.Value(func(val []byte) error {
		n, err := decodeNode(val)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	return node, err
}

func putNode(txn *badger.Txn, node *metadata.Node) error {
	bytes, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := txn.Set(keyFile(node.ID), bytes); err != nil {
		return fmt.Errorf("failed to store node: %w", err)
	}
	return nil
}

func getContainer(txn *badger.Txn, id string) (*metadata.Node, error) {
	node, err := getNode(txn, id)
	if err != nil {
		if resource.IsNotFound(err) {
			return nil, resource.NewError(resource.ErrNotFound, id, "container not found")
		}
		return nil, err
	}
	if !node.IsContainer() {
		return nil, resource.NewError(resource.ErrInvalidOperation, id, "not a container")
	}
	return node, nil
}

// childID resolves a child entry. ok is false when no entry exists.
func childID(txn *badger.Txn, parentID, name string) (string, bool, error) {
	item, err := txn.Get(keyChild(parentID, resource.NameKey(name)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get child entry: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

func hasChildren(txn *badger.Txn, parentID string) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = keyChildPrefix(parentID)

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}
