package store

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// gateCapacity is the weight a writer takes, which also bounds how many
// readers can hold one file's gate at once.
const gateCapacity = 1 << 20

// gates hands out a per-file reader/writer gate. Readers hold it while they
// pair a metadata snapshot with an open content stream; writers hold it from
// the first content byte until the metadata update is committed. Entries are
// reference counted and dropped once nobody holds or waits on them.
type gates struct {
	mu sync.Mutex
	m  map[string]*gate
}

type gate struct {
	sem  *semaphore.Weighted
	refs int
}

func newGates() *gates {
	return &gates{m: make(map[string]*gate)}
}

// read acquires a shared hold on id's gate.
func (g *gates) read(ctx context.Context, id string) (func(), error) {
	return g.acquire(ctx, id, 1)
}

// write acquires an exclusive hold on id's gate.
func (g *gates) write(ctx context.Context, id string) (func(), error) {
	return g.acquire(ctx, id, gateCapacity)
}

func (g *gates) acquire(ctx context.Context, id string, weight int64) (func(), error) {
	g.mu.Lock()
	e, ok := g.m[id]
	if !ok {
		e = &gate{sem: semaphore.NewWeighted(gateCapacity)}
		g.m[id] = e
	}
	e.refs++
	g.mu.Unlock()

	if err := e.sem.Acquire(ctx, weight); err != nil {
		g.put(id, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(weight)
			g.put(id, e)
		})
	}, nil
}

func (g *gates) put(id string, e *gate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.m, id)
	}
}

// held reports how many gate entries are live.
func (g *gates) held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
