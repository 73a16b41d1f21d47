package memory

import (
	"context"
	"testing"

	"github.com/marmos91/wopihost/pkg/store/content"
	storetesting "github.com/marmos91/wopihost/pkg/store/content/testing"
	"github.com/stretchr/testify/require"
)

func TestMemoryContentStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			store, err := NewMemoryContentStore(context.Background())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}
