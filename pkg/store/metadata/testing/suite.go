package testing

import (
	"context"
	"testing"

	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a conformance suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, so every
// backend (memory, badger) runs the same cases.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Tree", suite.RunTreeTests)
	t.Run("Mutations", suite.RunMutationTests)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) metadata.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustRoot(t *testing.T, store metadata.Store) *metadata.Node {
	t.Helper()
	root, err := store.Root(testContext())
	require.NoError(t, err)
	return root
}

func mustCreate(t *testing.T, store metadata.Store, parentID, name string, kind resource.Kind) *metadata.Node {
	t.Helper()
	node, err := store.Create(testContext(), parentID, name, kind, "owner")
	require.NoError(t, err, "Create %q should succeed", name)
	return node
}

func requireCode(t *testing.T, code resource.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	got, ok := resource.CodeOf(err)
	require.True(t, ok, "expected a StoreError, got %v", err)
	require.Equal(t, code, got, "unexpected error code: %v", err)
}
