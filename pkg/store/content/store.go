// Package content defines the byte-storage contract behind WOPI files.
//
// The content store holds file bytes keyed by the metadata node ID. It knows
// nothing about names, containers or versions; the provider in pkg/store
// keeps metadata and content consistent.
package content

import (
	"context"
	"io"
)

// Store stores whole-object content.
//
// WOPI always replaces a file's content in full (PutFile, PutRelativeFile),
// so the contract is a streaming whole-object write rather than random
// access.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writes to the
// same ID are last-write-wins.
type Store interface {
	// ReadContent opens the content for reading. The caller closes the reader.
	// The reader yields the content as it was when opened; a later write to
	// the same ID must not change what it returns.
	//
	// Returns ErrContentNotFound (wrapped) when no content exists for id.
	ReadContent(ctx context.Context, id string) (io.ReadCloser, error)

	// WriteContent replaces the content with everything read from r and
	// returns the number of bytes stored.
	//
	// Cancellation stops the copy promptly; the stored content may then be
	// partial or unchanged depending on the backend.
	WriteContent(ctx context.Context, id string, r io.Reader) (int64, error)

	// ContentExists reports whether content exists for id.
	ContentExists(ctx context.Context, id string) (bool, error)

	// Delete removes content. Deleting missing content is not an error.
	Delete(ctx context.Context, id string) error

	// ListContent returns the IDs of all stored content in no particular
	// order. Used by garbage collection to find blobs that no file owns.
	ListContent(ctx context.Context) ([]string, error)
}
