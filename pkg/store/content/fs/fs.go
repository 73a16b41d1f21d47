// Package fs implements filesystem-based content storage.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/wopihost/pkg/store/content"
)

// FSContentStore implements content.Store using the local filesystem.
//
// Content for ID "abcdef..." lives at <basePath>/ab/abcdef...; the two-char
// fan-out keeps directory sizes bounded for large trees.
//
// Writes go to a temporary file in the same directory that is renamed over
// the target once the copy completes, so readers never observe a partially
// written file. A cancelled write removes the temporary file and leaves the
// previous content in place.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates a new filesystem-based content store.
//
// The base directory is created with permissions 0755 if it doesn't exist.
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Create the base directory if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath returns the full path for a given content ID.
func (r *FSContentStore) getFilePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%q: %w", id, content.ErrInvalidContentID)
	}

	shard := id
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(r.basePath, shard, id), nil
}

func (r *FSContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open content %s: %w", id, err)
	}
	return f, nil
}

func (r *FSContentStore) WriteContent(ctx context.Context, id string, src io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Resolve target and ensure shard directory
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create content directory: %w", err)
	}

	// ========================================================================
	// Step 2: Copy into a temporary file
	// ========================================================================

	tmp, err := os.CreateTemp(dir, "."+id+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, content.NewContextReader(ctx, src))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return n, fmt.Errorf("failed to write content %s: %w", id, copyErr)
		}
		return n, fmt.Errorf("failed to close content %s: %w", id, closeErr)
	}

	// ========================================================================
	// Step 3: Atomically replace the target
	// ========================================================================

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("failed to publish content %s: %w", id, err)
	}
	return n, nil
}

func (r *FSContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return true, nil
}

func (r *FSContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// ListContent walks the shard directories. In-flight temporary files are
// skipped.
func (r *FSContentStore) ListContent(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(r.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ids = append(ids, d.Name())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return ids, nil
}
