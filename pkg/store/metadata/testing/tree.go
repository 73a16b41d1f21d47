package testing

import (
	"testing"
	"time"

	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTreeTests covers read-only navigation of the tree.
func (suite *StoreTestSuite) RunTreeTests(t *testing.T) {
	t.Run("Root", suite.testRoot)
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Lookup_CaseInsensitive", suite.testLookupCaseInsensitive)
	t.Run("Lookup_NotFound", suite.testLookupNotFound)
	t.Run("Children_Sorted", suite.testChildrenSorted)
	t.Run("Children_OfFile", suite.testChildrenOfFile)
}

// RunMutationTests covers create, rename, content updates and delete.
func (suite *StoreTestSuite) RunMutationTests(t *testing.T) {
	t.Run("Create_File", suite.testCreateFile)
	t.Run("Create_Duplicate", suite.testCreateDuplicate)
	t.Run("Create_InvalidName", suite.testCreateInvalidName)
	t.Run("Create_UnderFile", suite.testCreateUnderFile)
	t.Run("Rename", suite.testRename)
	t.Run("Rename_CaseOnly", suite.testRenameCaseOnly)
	t.Run("Rename_Collision", suite.testRenameCollision)
	t.Run("Rename_Root", suite.testRenameRoot)
	t.Run("UpdateContent_BumpsVersion", suite.testUpdateContent)
	t.Run("Delete_File", suite.testDeleteFile)
	t.Run("Delete_NonEmptyContainer", suite.testDeleteNonEmpty)
	t.Run("Delete_Root", suite.testDeleteRoot)
}

// ============================================================================
// Tree Tests
// ============================================================================

func (suite *StoreTestSuite) testRoot(t *testing.T) {
	store := suite.newStore(t)

	root := mustRoot(t, store)
	assert.NotEmpty(t, root.ID)
	assert.Empty(t, root.ParentID)
	assert.True(t, root.IsContainer())

	again := mustRoot(t, store)
	assert.Equal(t, root.ID, again.ID)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Get(testContext(), "missing")
	requireCode(t, resource.ErrNotFound, err)
}

func (suite *StoreTestSuite) testLookupCaseInsensitive(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "Report.docx", resource.KindFile)

	found, err := store.Lookup(testContext(), root.ID, "REPORT.DOCX")
	require.NoError(t, err)
	assert.Equal(t, file.ID, found.ID)
	assert.Equal(t, "Report.docx", found.Name)
}

func (suite *StoreTestSuite) testLookupNotFound(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	_, err := store.Lookup(testContext(), root.ID, "nothing.docx")
	requireCode(t, resource.ErrNotFound, err)
}

func (suite *StoreTestSuite) testChildrenSorted(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	mustCreate(t, store, root.ID, "b.docx", resource.KindFile)
	mustCreate(t, store, root.ID, "A.xlsx", resource.KindFile)
	mustCreate(t, store, root.ID, "c", resource.KindContainer)

	children, err := store.Children(testContext(), root.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)

	names := []string{children[0].Name, children[1].Name, children[2].Name}
	assert.Equal(t, []string{"A.xlsx", "b.docx", "c"}, names)
}

func (suite *StoreTestSuite) testChildrenOfFile(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "a.docx", resource.KindFile)

	_, err := store.Children(testContext(), file.ID)
	requireCode(t, resource.ErrInvalidOperation, err)
}

// ============================================================================
// Mutation Tests
// ============================================================================

func (suite *StoreTestSuite) testCreateFile(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	file := mustCreate(t, store, root.ID, "new.docx", resource.KindFile)
	assert.Equal(t, root.ID, file.ParentID)
	assert.Equal(t, "owner", file.OwnerID)
	assert.Equal(t, resource.KindFile, file.Kind)
	assert.Zero(t, file.Size)
	assert.Equal(t, uint64(1), file.Version)

	got, err := store.Get(testContext(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.Name, got.Name)
}

func (suite *StoreTestSuite) testCreateDuplicate(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	mustCreate(t, store, root.ID, "dup.docx", resource.KindFile)

	_, err := store.Create(testContext(), root.ID, "DUP.docx", resource.KindFile, "owner")
	requireCode(t, resource.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) testCreateInvalidName(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	_, err := store.Create(testContext(), root.ID, "bad|name.docx", resource.KindFile, "owner")
	requireCode(t, resource.ErrInvalidName, err)
}

func (suite *StoreTestSuite) testCreateUnderFile(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "a.docx", resource.KindFile)

	_, err := store.Create(testContext(), file.ID, "b.docx", resource.KindFile, "owner")
	requireCode(t, resource.ErrInvalidOperation, err)
}

func (suite *StoreTestSuite) testRename(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "old.docx", resource.KindFile)

	renamed, err := store.Rename(testContext(), file.ID, "new.docx")
	require.NoError(t, err)
	assert.Equal(t, "new.docx", renamed.Name)
	assert.Equal(t, file.ID, renamed.ID)

	_, err = store.Lookup(testContext(), root.ID, "old.docx")
	requireCode(t, resource.ErrNotFound, err)

	found, err := store.Lookup(testContext(), root.ID, "new.docx")
	require.NoError(t, err)
	assert.Equal(t, file.ID, found.ID)
}

func (suite *StoreTestSuite) testRenameCaseOnly(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "notes.txt", resource.KindFile)

	renamed, err := store.Rename(testContext(), file.ID, "Notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "Notes.txt", renamed.Name)
}

func (suite *StoreTestSuite) testRenameCollision(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	mustCreate(t, store, root.ID, "taken.docx", resource.KindFile)
	file := mustCreate(t, store, root.ID, "mine.docx", resource.KindFile)

	_, err := store.Rename(testContext(), file.ID, "taken.docx")
	requireCode(t, resource.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) testRenameRoot(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	_, err := store.Rename(testContext(), root.ID, "elsewhere")
	requireCode(t, resource.ErrInvalidOperation, err)
}

func (suite *StoreTestSuite) testUpdateContent(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "data.bin", resource.KindFile)

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	updated, err := store.UpdateContent(testContext(), file.ID, metadata.ContentUpdate{
		Size:     42,
		Checksum: []byte{0xde, 0xad},
		ModTime:  when,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), updated.Size)
	assert.Equal(t, uint64(2), updated.Version)
	assert.Equal(t, []byte{0xde, 0xad}, updated.Checksum)
	assert.True(t, when.Equal(updated.ModTime))

	again, err := store.UpdateContent(testContext(), file.ID, metadata.ContentUpdate{Size: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), again.Version)

	_, err = store.UpdateContent(testContext(), root.ID, metadata.ContentUpdate{})
	requireCode(t, resource.ErrInvalidOperation, err)
}

func (suite *StoreTestSuite) testDeleteFile(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	file := mustCreate(t, store, root.ID, "gone.docx", resource.KindFile)

	require.NoError(t, store.Delete(testContext(), file.ID))

	_, err := store.Get(testContext(), file.ID)
	requireCode(t, resource.ErrNotFound, err)

	// The name is free again
	mustCreate(t, store, root.ID, "gone.docx", resource.KindFile)

	err = store.Delete(testContext(), file.ID)
	requireCode(t, resource.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteNonEmpty(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)
	dir := mustCreate(t, store, root.ID, "folder", resource.KindContainer)
	child := mustCreate(t, store, dir.ID, "inner.docx", resource.KindFile)

	err := store.Delete(testContext(), dir.ID)
	requireCode(t, resource.ErrNotEmpty, err)

	require.NoError(t, store.Delete(testContext(), child.ID))
	require.NoError(t, store.Delete(testContext(), dir.ID))
}

func (suite *StoreTestSuite) testDeleteRoot(t *testing.T) {
	store := suite.newStore(t)
	root := mustRoot(t, store)

	err := store.Delete(testContext(), root.ID)
	requireCode(t, resource.ErrInvalidOperation, err)
}
