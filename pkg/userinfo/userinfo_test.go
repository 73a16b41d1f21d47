package userinfo

import (
	"context"
	"strings"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	info, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, info)

	require.NoError(t, store.Put(ctx, "alice", `{"theme":"dark"}`))
	info, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"dark"}`, info)

	info, err = store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, info)

	// Limit counts characters, not bytes
	require.NoError(t, store.Put(ctx, "alice", strings.Repeat("é", MaxLength)))
	err = store.Put(ctx, "alice", strings.Repeat("x", MaxLength+1))
	assert.ErrorIs(t, err, ErrTooLong)

	info, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", MaxLength), info, "rejected put leaves the old value")
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING))
	require.NoError(t, err)
	defer db.Close()

	runStoreTests(t, NewBadgerStore(db))
}
