// Package resource defines the storage-facing contracts used by the WOPI
// protocol handlers: files, containers and the Provider that resolves them.
//
// Values returned by a Provider are stateless views fetched on demand. The
// protocol layer never caches them across requests.
package resource

import (
	"context"
	"io"
	"time"
)

// Kind tags which family of resource an operation targets.
//
// Operations that work on both files and containers (rename, delete,
// ancestor enumeration) take a Kind selected by the caller instead of
// inspecting the resource at runtime.
type Kind int

const (
	KindFile Kind = iota
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// File is a read-only view of a stored file.
type File struct {
	// ID is opaque and stable for the lifetime of the file.
	ID string

	// ContainerID identifies the container holding the file.
	ContainerID string

	// Name is the display name including the extension.
	Name string

	// Extension includes the leading dot (".docx"), empty when absent.
	Extension string

	OwnerID string

	Size int64

	// LastWriteTime is always UTC.
	LastWriteTime time.Time

	// Version changes whenever the content changes and never repeats
	// for the same ID.
	Version string

	// Checksum is the SHA-256 digest of the content when the backend has it
	// cached. Nil means it must be computed from the bytes.
	Checksum []byte
}

// BaseName returns the name without its extension.
func (f *File) BaseName() string {
	base, _ := SplitName(f.Name)
	return base
}

// Container is a read-only view of a stored container (folder).
type Container struct {
	ID string

	// ParentID is empty for the root container.
	ParentID string

	Name string
}

// IsRoot reports whether the container is the root of the hierarchy.
func (c *Container) IsRoot() bool {
	return c.ParentID == ""
}

// Provider is the storage-provider contract the protocol handlers depend on.
//
// Implementations must be safe for concurrent use. Every method honours
// context cancellation. Business failures are reported as *StoreError values
// (see errors.go) so the protocol layer can map them to wire statuses.
type Provider interface {
	// GetFile returns the file with the given ID or ErrNotFound.
	GetFile(ctx context.Context, id string) (*File, error)

	// GetContainer returns the container with the given ID or ErrNotFound.
	GetContainer(ctx context.Context, id string) (*Container, error)

	// GetRootContainer returns the single root container.
	GetRootContainer(ctx context.Context) (*Container, error)

	// GetAncestors returns the containers above the resource, root first.
	// The resource itself is not included. The root has no ancestors.
	GetAncestors(ctx context.Context, kind Kind, id string) ([]Container, error)

	// ListChildren returns the direct children of a container.
	ListChildren(ctx context.Context, containerID string) ([]File, []Container, error)

	// LookupFile finds a file by name (case-insensitive) inside a container.
	LookupFile(ctx context.Context, containerID, name string) (*File, error)

	// OpenRead opens the file content and returns the file view describing
	// exactly those bytes (size, version, checksum). The caller closes the
	// reader.
	OpenRead(ctx context.Context, id string) (*File, io.ReadCloser, error)

	// Write replaces the file content with everything read from r and
	// returns the updated view. A cancelled write may leave partial content.
	Write(ctx context.Context, id string, r io.Reader) (*File, error)

	// CreateFile creates an empty file. Returns ErrAlreadyExists when the
	// name is taken and ErrInvalidName when the name is not legal.
	CreateFile(ctx context.Context, containerID, name, ownerID string) (*File, error)

	// CreateContainer creates an empty child container.
	CreateContainer(ctx context.Context, parentID, name string) (*Container, error)

	// UniqueName returns name if it is free in the container, otherwise the
	// first free "base (n).ext" variant.
	UniqueName(ctx context.Context, containerID, name string) (string, error)

	// Rename changes the display name of a resource in place.
	Rename(ctx context.Context, kind Kind, id, newName string) error

	// Delete removes a resource. It returns false when the backend declined
	// the deletion without a classified error.
	Delete(ctx context.Context, kind Kind, id string) (bool, error)
}
