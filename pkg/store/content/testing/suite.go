package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/marmos91/wopihost/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a comprehensive test suite for content.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across memory, filesystem and S3 backends.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh store for each
	// test. This ensures test isolation.
	NewStore func(t *testing.T) content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("ReadContent_NotFound", suite.testReadNotFound)
	t.Run("WriteContent_RoundTrip", suite.testRoundTrip)
	t.Run("WriteContent_Empty", suite.testWriteEmpty)
	t.Run("WriteContent_Replaces", suite.testReplace)
	t.Run("WriteContent_Large", suite.testWriteLarge)
	t.Run("WriteContent_Cancelled", suite.testWriteCancelled)
	t.Run("ContentExists", suite.testExists)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("ListContent", suite.testListContent)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustWriteContent writes content and fails the test if it errors.
func mustWriteContent(t *testing.T, store content.Store, id string, data []byte) {
	t.Helper()
	n, err := store.WriteContent(testContext(), id, bytes.NewReader(data))
	require.NoError(t, err, "WriteContent should succeed")
	require.Equal(t, int64(len(data)), n)
}

// mustReadContent reads content and fails the test if it errors.
func mustReadContent(t *testing.T, store content.Store, id string) []byte {
	t.Helper()
	reader, err := store.ReadContent(testContext(), id)
	require.NoError(t, err, "ReadContent should succeed")
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "Reading content should succeed")
	return data
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}

// generateTestID generates a test content ID.
func generateTestID(name string) string {
	return "test-" + name
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.ReadContent(testContext(), generateTestID("nonexistent"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testRoundTrip(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("round-trip")

	mustWriteContent(t, store, id, []byte("Hello, World!"))
	assert.Equal(t, []byte("Hello, World!"), mustReadContent(t, store, id))
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("empty")

	mustWriteContent(t, store, id, []byte{})
	assert.Empty(t, mustReadContent(t, store, id))
}

func (suite *StoreTestSuite) testReplace(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("replace")

	mustWriteContent(t, store, id, []byte("first version, rather long"))
	mustWriteContent(t, store, id, []byte("second"))
	assert.Equal(t, []byte("second"), mustReadContent(t, store, id))
}

func (suite *StoreTestSuite) testWriteLarge(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("large")
	data := generateTestData(1024 * 1024)

	mustWriteContent(t, store, id, data)
	assert.Equal(t, data, mustReadContent(t, store, id))
}

func (suite *StoreTestSuite) testWriteCancelled(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("cancelled")

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := store.WriteContent(ctx, id, strings.NewReader("never stored"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("exists")

	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, exists)

	mustWriteContent(t, store, id, []byte("x"))

	exists, err = store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID("delete")

	mustWriteContent(t, store, id, []byte("bye"))
	require.NoError(t, store.Delete(testContext(), id))
	require.NoError(t, store.Delete(testContext(), id))

	_, err := store.ReadContent(testContext(), id)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testListContent(t *testing.T) {
	store := suite.NewStore(t)

	ids, err := store.ListContent(testContext())
	require.NoError(t, err)
	assert.Empty(t, ids)

	mustWriteContent(t, store, generateTestID("list-a"), []byte("a"))
	mustWriteContent(t, store, generateTestID("list-b"), []byte("b"))
	mustWriteContent(t, store, generateTestID("list-c"), []byte{})
	require.NoError(t, store.Delete(testContext(), generateTestID("list-c")))

	ids, err = store.ListContent(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{generateTestID("list-a"), generateTestID("list-b")}, ids)
}
