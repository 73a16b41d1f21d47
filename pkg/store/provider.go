// Package store composes a metadata store and a content store into the
// resource.Provider consumed by the WOPI handlers.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/content"
	"github.com/marmos91/wopihost/pkg/store/metadata"
)

// maxUniqueNameAttempts bounds the "name (n).ext" probe in UniqueName.
const maxUniqueNameAttempts = 10000

// Provider implements resource.Provider on top of a metadata.Store and a
// content.Store.
//
// Content Coordination:
//   - The content ID of a file is its node ID
//   - CreateFile writes an empty blob so that every file has content
//   - Write streams into the content store while hashing, then records size,
//     checksum and a new version in the metadata store
//   - Delete removes metadata first; a content blob left behind by a failed
//     content delete is logged and otherwise harmless
//   - Write holds the file's gate exclusively until the metadata is updated
//     and OpenRead holds it shared while it stats and opens, so a reader's
//     view always describes the bytes it streams
type Provider struct {
	metadata metadata.Store
	content  content.Store
	gates    *gates
}

var _ resource.Provider = (*Provider)(nil)

// NewProvider creates a provider over the given stores.
func NewProvider(metadataStore metadata.Store, contentStore content.Store) *Provider {
	return &Provider{metadata: metadataStore, content: contentStore, gates: newGates()}
}

// Close closes the metadata store.
func (p *Provider) Close() error {
	return p.metadata.Close()
}

// ============================================================================
// Conversions
// ============================================================================

func toFile(n *metadata.Node) *resource.File {
	return &resource.File{
		ID:            n.ID,
		ContainerID:   n.ParentID,
		Name:          n.Name,
		Extension:     resource.Extension(n.Name),
		OwnerID:       n.OwnerID,
		Size:          n.Size,
		LastWriteTime: n.ModTime.UTC(),
		Version:       strconv.FormatUint(n.Version, 10),
		Checksum:      n.Checksum,
	}
}

func toContainer(n *metadata.Node) *resource.Container {
	return &resource.Container{ID: n.ID, ParentID: n.ParentID, Name: n.Name}
}

// getKind fetches a node and checks it is of the expected kind. A node of the
// other kind is reported as not found so file IDs and container IDs never
// resolve through the wrong endpoint family.
func (p *Provider) getKind(ctx context.Context, kind resource.Kind, id string) (*metadata.Node, error) {
	n, err := p.metadata.Get(ctx, id)
	if err != nil {
		if resource.IsNotFound(err) {
			return nil, resource.NotFound(kind, id)
		}
		return nil, err
	}
	if n.Kind != kind {
		return nil, resource.NotFound(kind, id)
	}
	return n, nil
}

// ============================================================================
// Reads
// ============================================================================

func (p *Provider) GetFile(ctx context.Context, id string) (*resource.File, error) {
	n, err := p.getKind(ctx, resource.KindFile, id)
	if err != nil {
		return nil, err
	}
	return toFile(n), nil
}

func (p *Provider) GetContainer(ctx context.Context, id string) (*resource.Container, error) {
	n, err := p.getKind(ctx, resource.KindContainer, id)
	if err != nil {
		return nil, err
	}
	return toContainer(n), nil
}

func (p *Provider) GetRootContainer(ctx context.Context) (*resource.Container, error) {
	n, err := p.metadata.Root(ctx)
	if err != nil {
		return nil, err
	}
	return toContainer(n), nil
}

func (p *Provider) GetAncestors(ctx context.Context, kind resource.Kind, id string) ([]resource.Container, error) {
	n, err := p.getKind(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	// Walk up to the root, then reverse into root-first order
	var chain []resource.Container
	for parentID := n.ParentID; parentID != ""; {
		parent, err := p.metadata.Get(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ancestor %s: %w", parentID, err)
		}
		chain = append(chain, *toContainer(parent))
		parentID = parent.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (p *Provider) ListChildren(ctx context.Context, containerID string) ([]resource.File, []resource.Container, error) {
	if _, err := p.getKind(ctx, resource.KindContainer, containerID); err != nil {
		return nil, nil, err
	}

	nodes, err := p.metadata.Children(ctx, containerID)
	if err != nil {
		return nil, nil, err
	}

	var files []resource.File
	var containers []resource.Container
	for _, n := range nodes {
		if n.IsContainer() {
			containers = append(containers, *toContainer(n))
		} else {
			files = append(files, *toFile(n))
		}
	}
	return files, containers, nil
}

func (p *Provider) LookupFile(ctx context.Context, containerID, name string) (*resource.File, error) {
	n, err := p.metadata.Lookup(ctx, containerID, name)
	if err != nil {
		return nil, err
	}
	if n.IsContainer() {
		return nil, resource.NewError(resource.ErrNotFound, name, "file not found")
	}
	return toFile(n), nil
}

// OpenRead returns the file view together with a reader over the content
// that view describes.
func (p *Provider) OpenRead(ctx context.Context, id string) (*resource.File, io.ReadCloser, error) {
	release, err := p.gates.read(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	n, err := p.getKind(ctx, resource.KindFile, id)
	if err != nil {
		return nil, nil, err
	}

	r, err := p.content.ReadContent(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		if n.Size == 0 {
			return toFile(n), io.NopCloser(bytes.NewReader(nil)), nil
		}
		return nil, nil, resource.NewError(resource.ErrIOError, id, "content missing for file of size %d", n.Size)
	}
	if err != nil {
		return nil, nil, err
	}
	return toFile(n), r, nil
}

// ============================================================================
// Writes
// ============================================================================

func (p *Provider) Write(ctx context.Context, id string, r io.Reader) (*resource.File, error) {
	// ========================================================================
	// Step 1: Take the gate and check the target is a file
	// ========================================================================

	release, err := p.gates.write(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := p.getKind(ctx, resource.KindFile, id); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Stream content while hashing
	// ========================================================================

	h := sha256.New()
	n, err := p.content.WriteContent(ctx, id, io.TeeReader(r, h))
	if err != nil {
		return nil, fmt.Errorf("failed to write content of %s after %d bytes: %w", id, n, err)
	}

	// ========================================================================
	// Step 3: Record size, checksum and new version
	// ========================================================================

	node, err := p.metadata.UpdateContent(ctx, id, metadata.ContentUpdate{
		Size:     n,
		Checksum: h.Sum(nil),
	})
	if err != nil {
		return nil, err
	}
	return toFile(node), nil
}

func (p *Provider) CreateFile(ctx context.Context, containerID, name, ownerID string) (*resource.File, error) {
	n, err := p.metadata.Create(ctx, containerID, name, resource.KindFile, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err := p.content.WriteContent(ctx, n.ID, bytes.NewReader(nil)); err != nil {
		if derr := p.metadata.Delete(context.WithoutCancel(ctx), n.ID); derr != nil {
			logger.Warn("Failed to roll back file %s after content error: %v", n.ID, derr)
		}
		return nil, fmt.Errorf("failed to initialize content for %s: %w", name, err)
	}
	return toFile(n), nil
}

func (p *Provider) CreateContainer(ctx context.Context, parentID, name string) (*resource.Container, error) {
	n, err := p.metadata.Create(ctx, parentID, name, resource.KindContainer, "")
	if err != nil {
		return nil, err
	}
	return toContainer(n), nil
}

func (p *Provider) UniqueName(ctx context.Context, containerID, name string) (string, error) {
	if _, err := p.getKind(ctx, resource.KindContainer, containerID); err != nil {
		return "", err
	}

	for i := 0; i < maxUniqueNameAttempts; i++ {
		candidate := resource.CandidateName(name, i)
		_, err := p.metadata.Lookup(ctx, containerID, candidate)
		if resource.IsNotFound(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", resource.NewError(resource.ErrAlreadyExists, name, "no free name after %d attempts", maxUniqueNameAttempts)
}

func (p *Provider) Rename(ctx context.Context, kind resource.Kind, id, newName string) error {
	if _, err := p.getKind(ctx, kind, id); err != nil {
		return err
	}
	_, err := p.metadata.Rename(ctx, id, newName)
	return err
}

func (p *Provider) Delete(ctx context.Context, kind resource.Kind, id string) (bool, error) {
	n, err := p.getKind(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if n.ParentID == "" {
		// The root is never deleted
		return false, nil
	}

	if err := p.metadata.Delete(ctx, id); err != nil {
		return false, err
	}

	if kind == resource.KindFile {
		if err := p.content.Delete(ctx, id); err != nil {
			logger.Warn("Orphaned content for deleted file %s: %v", id, err)
		}
	}
	return true, nil
}
