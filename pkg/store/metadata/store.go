package metadata

import (
	"context"
	"time"

	"github.com/marmos91/wopihost/pkg/resource"
)

// ============================================================================
// Node
// ============================================================================

// Node is one entry of the resource tree: either a file or a container.
//
// Nodes are returned by value-copy from every Store method; callers may
// mutate the returned struct without affecting the store.
type Node struct {
	// ID is the stable identifier. For files it doubles as the content ID in
	// the content store.
	ID string `json:"id"`

	// ParentID is the containing container. Empty only for the root.
	ParentID string `json:"parent_id,omitempty"`

	// Name is the display name as supplied on creation or rename.
	Name string `json:"name"`

	Kind resource.Kind `json:"kind"`

	OwnerID string `json:"owner_id,omitempty"`

	// Size is the content length in bytes (files only).
	Size int64 `json:"size"`

	// ModTime is the last content write, UTC.
	ModTime time.Time `json:"mod_time"`

	// Version starts at 1 and is incremented on every content update. It is
	// never reused for the same ID.
	Version uint64 `json:"version"`

	// Checksum is the SHA-256 of the content as of Version, when known.
	Checksum []byte `json:"checksum,omitempty"`
}

// IsContainer reports whether the node is a container.
func (n *Node) IsContainer() bool {
	return n.Kind == resource.KindContainer
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Checksum != nil {
		c.Checksum = append([]byte(nil), n.Checksum...)
	}
	return &c
}

// ContentUpdate describes the effect of a completed content write.
type ContentUpdate struct {
	Size     int64
	Checksum []byte
	ModTime  time.Time
}

// ============================================================================
// Store Interface
// ============================================================================

// Store manages the file/container hierarchy and per-file metadata.
//
// The metadata store does NOT manage file content. Content lives in a
// separate content store keyed by the node ID; the provider in pkg/store
// coordinates both.
//
// Error Handling:
// Business failures are returned as *resource.StoreError:
//   - ErrNotFound: the node (or parent) does not exist
//   - ErrAlreadyExists: a sibling already uses the name (case-insensitive)
//   - ErrInvalidName: the name fails resource.ValidateName
//   - ErrNotEmpty: deleting a container that still has children
//   - ErrInvalidOperation: the operation does not apply to the node
//     (creating below a file, deleting or renaming the root, ...)
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Root returns the single root container. Stores create it on first use.
	Root(ctx context.Context) (*Node, error)

	// Get returns the node with the given ID.
	Get(ctx context.Context, id string) (*Node, error)

	// Lookup resolves a child by name inside a container. The match is
	// case-insensitive.
	Lookup(ctx context.Context, parentID, name string) (*Node, error)

	// Children lists the direct children of a container ordered by name.
	Children(ctx context.Context, parentID string) ([]*Node, error)

	// Create adds a new empty node below parentID.
	//
	// Files start with Size 0 and Version 1. The parent must be a container.
	Create(ctx context.Context, parentID, name string, kind resource.Kind, ownerID string) (*Node, error)

	// Rename changes the display name of a node in place. Renaming a node to
	// a case-variant of its own name is allowed.
	Rename(ctx context.Context, id, newName string) (*Node, error)

	// UpdateContent records a completed content write and bumps Version.
	UpdateContent(ctx context.Context, id string, update ContentUpdate) (*Node, error)

	// Delete removes a file or an empty container.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}

// DefaultRootName is the display name of a freshly created root container.
const DefaultRootName = "root"
