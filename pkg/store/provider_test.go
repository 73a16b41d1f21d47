package store

import (
	"context"
	"crypto/sha256"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/wopihost/internal/testutil"
	"github.com/marmos91/wopihost/pkg/resource"
	contentmemory "github.com/marmos91/wopihost/pkg/store/content/memory"
	metadatamemory "github.com/marmos91/wopihost/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (*Provider, *resource.Container) {
	t.Helper()
	ctx := context.Background()

	meta := metadatamemory.NewMemoryMetadataStore(metadatamemory.Config{
		Clock:       testutil.FixedClock(),
		IDGenerator: testutil.NewStubIDGenerator(),
	})
	blobs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	p := NewProvider(meta, blobs)
	root, err := p.GetRootContainer(ctx)
	require.NoError(t, err)
	return p, root
}

func TestProvider_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	file, err := p.CreateFile(ctx, root.ID, "report.docx", "alice")
	require.NoError(t, err)
	assert.Equal(t, "report.docx", file.Name)
	assert.Equal(t, ".docx", file.Extension)
	assert.Equal(t, "report", file.BaseName())
	assert.Equal(t, "1", file.Version)
	assert.Equal(t, root.ID, file.ContainerID)

	opened, r, err := p.OpenRead(ctx, file.ID)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, file.Version, opened.Version)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestProvider_WriteBumpsVersionAndChecksum(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	file, err := p.CreateFile(ctx, root.ID, "notes.txt", "alice")
	require.NoError(t, err)

	updated, err := p.Write(ctx, file.ID, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.Size)
	assert.Equal(t, "2", updated.Version)

	want := sha256.Sum256([]byte("hello"))
	assert.Equal(t, want[:], updated.Checksum)

	again, err := p.Write(ctx, file.ID, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "3", again.Version, "identical content still yields a new version")
}

func TestProvider_KindMismatchIsNotFound(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	file, err := p.CreateFile(ctx, root.ID, "a.docx", "alice")
	require.NoError(t, err)

	_, err = p.GetContainer(ctx, file.ID)
	assert.True(t, resource.IsNotFound(err))

	_, err = p.GetFile(ctx, root.ID)
	assert.True(t, resource.IsNotFound(err))

	err = p.Rename(ctx, resource.KindContainer, file.ID, "b")
	assert.True(t, resource.IsNotFound(err))
}

func TestProvider_Ancestors(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	a, err := p.CreateContainer(ctx, root.ID, "a")
	require.NoError(t, err)
	b, err := p.CreateContainer(ctx, a.ID, "b")
	require.NoError(t, err)
	file, err := p.CreateFile(ctx, b.ID, "deep.xlsx", "alice")
	require.NoError(t, err)

	chain, err := p.GetAncestors(ctx, resource.KindFile, file.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, root.ID, chain[0].ID)
	assert.Equal(t, a.ID, chain[1].ID)
	assert.Equal(t, b.ID, chain[2].ID)

	chain, err = p.GetAncestors(ctx, resource.KindContainer, root.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestProvider_UniqueName(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	name, err := p.UniqueName(ctx, root.ID, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, "report.docx", name)

	_, err = p.CreateFile(ctx, root.ID, "report.docx", "alice")
	require.NoError(t, err)
	_, err = p.CreateFile(ctx, root.ID, "Report (1).docx", "alice")
	require.NoError(t, err)

	name, err = p.UniqueName(ctx, root.ID, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, "report (2).docx", name)
}

func TestProvider_ListChildren(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	_, err := p.CreateFile(ctx, root.ID, "one.docx", "alice")
	require.NoError(t, err)
	_, err = p.CreateContainer(ctx, root.ID, "folder")
	require.NoError(t, err)

	files, containers, err := p.ListChildren(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, containers, 1)
	assert.Equal(t, "one.docx", files[0].Name)
	assert.Equal(t, "folder", containers[0].Name)
}

func TestProvider_Delete(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	file, err := p.CreateFile(ctx, root.ID, "gone.docx", "alice")
	require.NoError(t, err)

	ok, err := p.Delete(ctx, resource.KindFile, file.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.GetFile(ctx, file.ID)
	assert.True(t, resource.IsNotFound(err))

	ok, err = p.Delete(ctx, resource.KindContainer, root.ID)
	require.NoError(t, err)
	assert.False(t, ok, "root deletion is declined")
}

func TestProvider_DeleteNonEmptyContainer(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	dir, err := p.CreateContainer(ctx, root.ID, "full")
	require.NoError(t, err)
	_, err = p.CreateFile(ctx, dir.ID, "inside.docx", "alice")
	require.NoError(t, err)

	_, err = p.Delete(ctx, resource.KindContainer, dir.ID)
	assert.True(t, resource.IsNotEmpty(err))
}

// Every reader sees a view whose size and checksum describe the bytes it
// streams, however writes interleave.
func TestProvider_OpenReadSnapshotUnderConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	p, root := newTestProvider(t)

	file, err := p.CreateFile(ctx, root.ID, "hot.txt", "alice")
	require.NoError(t, err)
	_, err = p.Write(ctx, file.ID, strings.NewReader("seed"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Write(ctx, file.ID, strings.NewReader(strings.Repeat("w", i*100)))
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opened, r, err := p.OpenRead(ctx, file.ID)
			if !assert.NoError(t, err) {
				return
			}
			defer r.Close()
			data, err := io.ReadAll(r)
			assert.NoError(t, err)
			assert.Equal(t, opened.Size, int64(len(data)))
			sum := sha256.Sum256(data)
			assert.Equal(t, opened.Checksum, sum[:])
		}()
	}
	wg.Wait()

	assert.Zero(t, p.gates.held())
}

func TestGates_WriterExcludesReaders(t *testing.T) {
	g := newGates()

	release, err := g.write(context.Background(), "f1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.read(ctx, "f1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other files are unaffected
	other, err := g.read(context.Background(), "f2")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.Zero(t, g.held())

	r1, err := g.read(context.Background(), "f1")
	require.NoError(t, err)
	r2, err := g.read(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.held())
	r1()
	r2()
	assert.Zero(t, g.held())
}
