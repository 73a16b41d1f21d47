package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/wopihost/pkg/store/content"
	storetesting "github.com/marmos91/wopihost/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContentStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			store, err := NewFSContentStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStore_Layout(t *testing.T) {
	base := t.TempDir()
	store, err := NewFSContentStore(context.Background(), base)
	require.NoError(t, err)

	_, err = store.WriteContent(context.Background(), "abcdef", strings.NewReader("data"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(base, "ab", "abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Join(base, "ab"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFSContentStore_RejectsTraversal(t *testing.T) {
	store, err := NewFSContentStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "../etc/passwd", `a\b`} {
		_, err := store.WriteContent(context.Background(), id, strings.NewReader("x"))
		assert.ErrorIs(t, err, content.ErrInvalidContentID, id)
	}
}

func TestFSContentStore_ListSkipsTemporaryFiles(t *testing.T) {
	base := t.TempDir()
	store, err := NewFSContentStore(context.Background(), base)
	require.NoError(t, err)

	_, err = store.WriteContent(context.Background(), "abcdef", strings.NewReader("live"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "ab", ".abcdef.123.tmp"), []byte("partial"), 0644))

	ids, err := store.ListContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdef"}, ids)
}
