package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/wopihost/internal/testutil"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a conformance suite for lock.Store implementations.
//
// Usage:
//
//	func TestMyLockStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T, c clock.Clock) lock.Store {
//	            return mystore.New(c)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh store reading time from c.
	NewStore func(t *testing.T, c *testutil.StubClock) lock.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("TryGet_Absent", suite.testTryGetAbsent)
	t.Run("Add_TryGet", suite.testAddTryGet)
	t.Run("Refresh_KeepsToken", suite.testRefreshKeepsToken)
	t.Run("Refresh_ReplacesToken", suite.testRefreshReplacesToken)
	t.Run("Refresh_Absent", suite.testRefreshAbsent)
	t.Run("Remove", suite.testRemove)
	t.Run("Expiry_Boundary", suite.testExpiryBoundary)
	t.Run("Expiry_Idempotent", suite.testExpiryIdempotent)
	t.Run("Refresh_ExtendsLifetime", suite.testRefreshExtends)
	t.Run("Sweep", suite.testSweep)
	t.Run("Cancelled", suite.testCancelled)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) setup(t *testing.T) (lock.Store, *testutil.StubClock) {
	t.Helper()
	c := testutil.FixedClock()
	return suite.NewStore(t, c), c
}

func mustAdd(t *testing.T, store lock.Store, fileID, lockID string) *lock.Lock {
	t.Helper()
	l, err := store.Add(testContext(), fileID, lockID)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func mustTryGet(t *testing.T, store lock.Store, fileID string) *lock.Lock {
	t.Helper()
	l, err := store.TryGet(testContext(), fileID)
	require.NoError(t, err)
	return l
}

func (suite *StoreTestSuite) testTryGetAbsent(t *testing.T) {
	store, _ := suite.setup(t)
	assert.Nil(t, mustTryGet(t, store, "f1"))
}

func (suite *StoreTestSuite) testAddTryGet(t *testing.T) {
	store, c := suite.setup(t)

	added := mustAdd(t, store, "f1", "A")
	assert.Equal(t, "f1", added.FileID)
	assert.Equal(t, "A", added.LockID)
	assert.True(t, c.Now().Equal(added.CreatedAt))

	got := mustTryGet(t, store, "f1")
	require.NotNil(t, got)
	assert.Equal(t, "A", got.LockID)
	assert.True(t, c.Now().Equal(got.CreatedAt))

	assert.Nil(t, mustTryGet(t, store, "f2"), "locks are per file")
}

func (suite *StoreTestSuite) testRefreshKeepsToken(t *testing.T) {
	store, c := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	c.Advance(10 * time.Minute)
	ok, err := store.Refresh(testContext(), "f1", "")
	require.NoError(t, err)
	assert.True(t, ok)

	got := mustTryGet(t, store, "f1")
	require.NotNil(t, got)
	assert.Equal(t, "A", got.LockID)
	assert.True(t, c.Now().Equal(got.CreatedAt))
}

func (suite *StoreTestSuite) testRefreshReplacesToken(t *testing.T) {
	store, _ := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	ok, err := store.Refresh(testContext(), "f1", "B")
	require.NoError(t, err)
	assert.True(t, ok)

	got := mustTryGet(t, store, "f1")
	require.NotNil(t, got)
	assert.Equal(t, "B", got.LockID)
}

func (suite *StoreTestSuite) testRefreshAbsent(t *testing.T) {
	store, _ := suite.setup(t)

	ok, err := store.Refresh(testContext(), "f1", "B")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, mustTryGet(t, store, "f1"))
}

func (suite *StoreTestSuite) testRemove(t *testing.T) {
	store, _ := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	ok, err := store.Remove(testContext(), "f1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, mustTryGet(t, store, "f1"))

	ok, err = store.Remove(testContext(), "f1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (suite *StoreTestSuite) testExpiryBoundary(t *testing.T) {
	store, c := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	c.Advance(lock.TTL - time.Millisecond)
	assert.NotNil(t, mustTryGet(t, store, "f1"), "still active just before TTL")

	c.Advance(time.Millisecond)
	assert.Nil(t, mustTryGet(t, store, "f1"), "gone exactly at TTL")
}

func (suite *StoreTestSuite) testExpiryIdempotent(t *testing.T) {
	store, c := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	c.Advance(lock.TTL + time.Second)
	assert.Nil(t, mustTryGet(t, store, "f1"))
	assert.Nil(t, mustTryGet(t, store, "f1"))

	// The first check removed the entry, so nothing is left to sweep
	removed, err := store.Sweep(testContext())
	require.NoError(t, err)
	assert.Zero(t, removed)

	ok, err := store.Refresh(testContext(), "f1", "")
	require.NoError(t, err)
	assert.False(t, ok, "expired locks cannot be refreshed")
}

func (suite *StoreTestSuite) testRefreshExtends(t *testing.T) {
	store, c := suite.setup(t)
	mustAdd(t, store, "f1", "A")

	c.Advance(20 * time.Minute)
	ok, err := store.Refresh(testContext(), "f1", "")
	require.NoError(t, err)
	require.True(t, ok)

	c.Advance(20 * time.Minute)
	assert.NotNil(t, mustTryGet(t, store, "f1"), "refresh restarts the TTL")

	c.Advance(10 * time.Minute)
	assert.Nil(t, mustTryGet(t, store, "f1"))
}

func (suite *StoreTestSuite) testSweep(t *testing.T) {
	store, c := suite.setup(t)
	mustAdd(t, store, "old-1", "A")
	mustAdd(t, store, "old-2", "B")

	c.Advance(20 * time.Minute)
	mustAdd(t, store, "young", "C")

	c.Advance(15 * time.Minute)
	removed, err := store.Sweep(testContext())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NotNil(t, mustTryGet(t, store, "young"))
}

func (suite *StoreTestSuite) testCancelled(t *testing.T) {
	store, _ := suite.setup(t)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := store.TryGet(ctx, "f1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Add(ctx, "f1", "A")
	assert.ErrorIs(t, err, context.Canceled)
}
