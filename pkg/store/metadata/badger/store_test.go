package badger

import (
	"context"
	"testing"

	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	storetesting "github.com/marmos91/wopihost/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{InMemory: true})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_PersistsRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir, RootName: "Documents"})
	require.NoError(t, err)

	root, err := store.Root(ctx)
	require.NoError(t, err)
	file, err := store.Create(ctx, root.ID, "kept.docx", resource.KindFile, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	again, err := reopened.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)
	assert.Equal(t, "Documents", again.Name)

	found, err := reopened.Lookup(ctx, root.ID, "kept.docx")
	require.NoError(t, err)
	assert.Equal(t, file.ID, found.ID)
	assert.Equal(t, "alice", found.OwnerID)
}
