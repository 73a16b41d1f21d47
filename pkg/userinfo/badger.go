package userinfo

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

const prefixUserInfo = "ui:"

func keyUserInfo(userID string) []byte {
	return []byte(prefixUserInfo + userID)
}

// BadgerStore keeps blobs in a Badger database shared with other stores.
// Keys are "ui:<userID>"; values are the raw blob.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore wraps an open database. The caller owns db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var info string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyUserInfo(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		info = string(val)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get user info: %w", err)
	}
	return info, nil
}

func (s *BadgerStore) Put(ctx context.Context, userID, info string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(info); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyUserInfo(userID), []byte(info))
	})
	if err != nil {
		return fmt.Errorf("failed to store user info: %w", err)
	}
	return nil
}
