package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// It is suitable for tests, development and ephemeral deployments; the tree
// is lost on restart.
//
// Storage Model:
//   - nodes: node ID -> node
//   - children: container ID -> lower-cased child name -> child ID
//
// Thread Safety:
// All operations are protected by a single read-write mutex.
type MemoryMetadataStore struct {
	mu       sync.RWMutex
	rootID   string
	nodes    map[string]*metadata.Node
	children map[string]map[string]string

	clock clock.Clock
	ids   clock.IDGenerator
}

// Config configures a MemoryMetadataStore. Zero values are valid.
type Config struct {
	// RootName is the display name of the root container.
	RootName string

	Clock       clock.Clock
	IDGenerator clock.IDGenerator
}

// NewMemoryMetadataStore creates a store holding only the root container.
func NewMemoryMetadataStore(cfg Config) *MemoryMetadataStore {
	s := &MemoryMetadataStore{
		nodes:    make(map[string]*metadata.Node),
		children: make(map[string]map[string]string),
		clock:    clock.OrReal(cfg.Clock),
		ids:      clock.OrUUID(cfg.IDGenerator),
	}

	name := cfg.RootName
	if name == "" {
		name = metadata.DefaultRootName
	}
	root := &metadata.Node{
		ID:      s.ids.New(),
		Name:    name,
		Kind:    resource.KindContainer,
		ModTime: s.clock.Now(),
		Version: 1,
	}
	s.rootID = root.ID
	s.nodes[root.ID] = root
	s.children[root.ID] = make(map[string]string)
	return s
}

// NewMemoryMetadataStoreWithDefaults creates a store with a real clock and
// UUID identifiers.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(Config{})
}

func (s *MemoryMetadataStore) Root(ctx context.Context) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[s.rootID].Clone(), nil
}

func (s *MemoryMetadataStore) Get(ctx context.Context, id string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, resource.NewError(resource.ErrNotFound, id, "node not found")
	}
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) Lookup(ctx context.Context, parentID, name string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.containerEntries(parentID)
	if err != nil {
		return nil, err
	}
	childID, ok := entries[resource.NameKey(name)]
	if !ok {
		return nil, resource.NewError(resource.ErrNotFound, name, "no such child")
	}
	return s.nodes[childID].Clone(), nil
}

func (s *MemoryMetadataStore) Children(ctx context.Context, parentID string) ([]*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.containerEntries(parentID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*metadata.Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.nodes[entries[k]].Clone())
	}
	return out, nil
}

func (s *MemoryMetadataStore) Create(ctx context.Context, parentID, name string, kind resource.Kind, ownerID string) (*metadata.Node, error) {
	// ========================================================================
	// Step 1: Validate inputs before taking the lock
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := resource.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ========================================================================
	// Step 2: Check parent and name collision
	// ========================================================================

	entries, err := s.containerEntries(parentID)
	if err != nil {
		return nil, err
	}
	key := resource.NameKey(name)
	if _, exists := entries[key]; exists {
		return nil, resource.NewError(resource.ErrAlreadyExists, name, "name already in use")
	}

	// ========================================================================
	// Step 3: Insert node
	// ========================================================================

	node := &metadata.Node{
		ID:       s.ids.New(),
		ParentID: parentID,
		Name:     name,
		Kind:     kind,
		OwnerID:  ownerID,
		ModTime:  s.clock.Now(),
		Version:  1,
	}
	s.nodes[node.ID] = node
	entries[key] = node.ID
	if kind == resource.KindContainer {
		s.children[node.ID] = make(map[string]string)
	}
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) Rename(ctx context.Context, id, newName string) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := resource.ValidateName(newName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, resource.NewError(resource.ErrNotFound, id, "node not found")
	}
	if node.ParentID == "" {
		return nil, resource.NewError(resource.ErrInvalidOperation, id, "cannot rename the root container")
	}

	entries := s.children[node.ParentID]
	oldKey := resource.NameKey(node.Name)
	newKey := resource.NameKey(newName)
	if existing, taken := entries[newKey]; taken && existing != id {
		return nil, resource.NewError(resource.ErrAlreadyExists, newName, "name already in use")
	}

	delete(entries, oldKey)
	entries[newKey] = id
	node.Name = newName
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) UpdateContent(ctx context.Context, id string, update metadata.ContentUpdate) (*metadata.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, resource.NewError(resource.ErrNotFound, id, "node not found")
	}
	if node.IsContainer() {
		return nil, resource.NewError(resource.ErrInvalidOperation, id, "containers have no content")
	}

	node.Size = update.Size
	node.Checksum = append([]byte(nil), update.Checksum...)
	node.ModTime = update.ModTime
	if node.ModTime.IsZero() {
		node.ModTime = s.clock.Now()
	}
	node.Version++
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return resource.NewError(resource.ErrNotFound, id, "node not found")
	}
	if node.ParentID == "" {
		return resource.NewError(resource.ErrInvalidOperation, id, "cannot delete the root container")
	}
	if node.IsContainer() && len(s.children[id]) > 0 {
		return resource.NewError(resource.ErrNotEmpty, node.Name, "container is not empty")
	}

	delete(s.children[node.ParentID], resource.NameKey(node.Name))
	delete(s.children, id)
	delete(s.nodes, id)
	return nil
}

func (s *MemoryMetadataStore) Close() error {
	return nil
}

// containerEntries returns the child index of a container. Caller holds mu.
func (s *MemoryMetadataStore) containerEntries(id string) (map[string]string, error) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, resource.NewError(resource.ErrNotFound, id, "container not found")
	}
	if !node.IsContainer() {
		return nil, resource.NewError(resource.ErrInvalidOperation, id, "not a container")
	}
	return s.children[id], nil
}
