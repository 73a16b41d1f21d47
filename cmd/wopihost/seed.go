package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/wopihost/pkg/resource"
)

// sampleOwner owns the seeded documents.
const sampleOwner = "wopihost"

// createInitialStructure fills an empty root container with a few sample
// documents. It reports false and leaves the store alone when the root
// already has children.
func createInitialStructure(ctx context.Context, p resource.Provider) (bool, error) {
	root, err := p.GetRootContainer(ctx)
	if err != nil {
		return false, err
	}

	files, containers, err := p.ListChildren(ctx, root.ID)
	if err != nil {
		return false, err
	}
	if len(files) > 0 || len(containers) > 0 {
		return false, nil
	}

	// Create "samples" container
	samples, err := p.CreateContainer(ctx, root.ID, "samples")
	if err != nil {
		return false, fmt.Errorf("failed to create samples container: %w", err)
	}

	sampleFiles := []struct {
		name    string
		content string
	}{
		{"notes.txt", "Some notes kept on the WOPI host.\n"},
		{"todo.csv", "task,owner\nreview,alice\npublish,bob\n"},
	}

	for _, f := range sampleFiles {
		if err := createSample(ctx, p, samples.ID, f.name, f.content); err != nil {
			return false, err
		}
	}

	// An empty document in the root to open for editing
	if _, err := p.CreateFile(ctx, root.ID, "readme.txt", sampleOwner); err != nil {
		return false, fmt.Errorf("failed to create readme.txt: %w", err)
	}

	return true, nil
}

func createSample(ctx context.Context, p resource.Provider, containerID, name, content string) error {
	file, err := p.CreateFile(ctx, containerID, name, sampleOwner)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	// Write actual content to the content store
	if _, err := p.Write(ctx, file.ID, strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write content for %s: %w", name, err)
	}
	return nil
}
