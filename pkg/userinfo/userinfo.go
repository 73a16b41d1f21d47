// Package userinfo stores the free-form per-user blob set by PutUserInfo and
// echoed back by CheckFileInfo.
package userinfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"
)

// MaxLength is the longest blob accepted, in characters.
const MaxLength = 1024

// ErrTooLong is returned for blobs longer than MaxLength characters.
var ErrTooLong = errors.New("user info too long")

// Store persists user info blobs. Get returns "" for unknown users.
type Store interface {
	Get(ctx context.Context, userID string) (string, error)
	Put(ctx context.Context, userID, info string) error
}

// Validate checks a blob against MaxLength.
func Validate(info string) error {
	if n := utf8.RuneCountInString(info); n > MaxLength {
		return fmt.Errorf("%w: %d characters, limit %d", ErrTooLong, n, MaxLength)
	}
	return nil
}

// MemoryStore keeps blobs in a map.
type MemoryStore struct {
	mu    sync.RWMutex
	infos map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{infos: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infos[userID], nil
}

func (s *MemoryStore) Put(ctx context.Context, userID, info string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(info); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[userID] = info
	return nil
}
