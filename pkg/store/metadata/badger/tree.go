package badger

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
)

func (s *BadgerMetadataStore) Root(ctx context.Context) (*metadata.Node, error) {
	return s.Get(ctx, s.rootID)
}

func (s *BadgerMetadataStore) Get(ctx context.Context, id string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *metadata.Node
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := getNode(txn, id)
		node = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BadgerMetadataStore) Lookup(ctx context.Context, parentID, name string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *metadata.Node
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getContainer(txn, parentID); err != nil {
			return err
		}
		id, ok, err := childID(txn, parentID, name)
		if err != nil {
			return err
		}
		if !ok {
			return resource.NewError(resource.ErrNotFound, name, "no such child")
		}
		node, err = getNode(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BadgerMetadataStore) Children(ctx context.Context, parentID string) ([]*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var nodes []*metadata.Node
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getContainer(txn, parentID); err != nil {
			return err
		}

		// Scan children using a prefix iterator; keys sort by lower-cased name
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyChildPrefix(parentID)

		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid(); it.Next() {
			// Check context periodically
			if count%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++

			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			node, err := getNode(txn, string(id))
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *BadgerMetadataStore) Create(ctx context.Context, parentID, name string, kind resource.Kind, ownerID string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := resource.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := &metadata.Node{
		ID:       s.ids.New(),
		ParentID: parentID,
		Name:     name,
		Kind:     kind,
		OwnerID:  ownerID,
		ModTime:  s.clock.Now(),
		Version:  1,
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getContainer(txn, parentID); err != nil {
			return err
		}
		if _, exists, err := childID(txn, parentID, name); err != nil {
			return err
		} else if exists {
			return resource.NewError(resource.ErrAlreadyExists, name, "name already in use")
		}

		if err := putNode(txn, node); err != nil {
			return err
		}
		return txn.Set(keyChild(parentID, resource.NameKey(name)), []byte(node.ID))
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BadgerMetadataStore) Rename(ctx context.Context, id, newName string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := resource.ValidateName(newName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var node *metadata.Node
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := getNode(txn, id)
		if err != nil {
			return err
		}
		if n.ParentID == "" {
			return resource.NewError(resource.ErrInvalidOperation, id, "cannot rename the root container")
		}

		existing, taken, err := childID(txn, n.ParentID, newName)
		if err != nil {
			return err
		}
		if taken && existing != id {
			return resource.NewError(resource.ErrAlreadyExists, newName, "name already in use")
		}

		if err := txn.Delete(keyChild(n.ParentID, resource.NameKey(n.Name))); err != nil {
			return err
		}
		if err := txn.Set(keyChild(n.ParentID, resource.NameKey(newName)), []byte(id)); err != nil {
			return err
		}
		n.Name = newName
		node = n
		return putNode(txn, n)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BadgerMetadataStore) UpdateContent(ctx context.Context, id string, update metadata.ContentUpdate) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var node *metadata.Node
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := getNode(txn, id)
		if err != nil {
			return err
		}
		if n.IsContainer() {
			return resource.NewError(resource.ErrInvalidOperation, id, "containers have no content")
		}

		n.Size = update.Size
		n.Checksum = append([]byte(nil), update.Checksum...)
		n.ModTime = update.ModTime
		if n.ModTime.IsZero() {
			n.ModTime = s.clock.Now()
		}
		n.Version++
		node = n
		return putNode(txn, n)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BadgerMetadataStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		n, err := getNode(txn, id)
		if err != nil {
			return err
		}
		if n.ParentID == "" {
			return resource.NewError(resource.ErrInvalidOperation, id, "cannot delete the root container")
		}
		if n.IsContainer() && hasChildren(txn, id) {
			return resource.NewError(resource.ErrNotEmpty, n.Name, "container is not empty")
		}

		if err := txn.Delete(keyChild(n.ParentID, resource.NameKey(n.Name))); err != nil {
			return err
		}
		return txn.Delete(keyFile(id))
	})
}
