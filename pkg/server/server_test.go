package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/wopihost/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until ctx is cancelled or Stop is called, or
// fails immediately when failWith is set.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	registry *registry.Registry
	started  chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	stops    atomic.Int32
	order    *[]string
	orderMu  *sync.Mutex
}

func newFakeAdapter(protocol string, port int) *fakeAdapter {
	return &fakeAdapter{
		protocol: protocol,
		port:     port,
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	close(f.started)
	if f.failWith != nil {
		return f.failWith
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.stopped:
		return nil
	}
}

func (f *fakeAdapter) SetRegistry(reg *registry.Registry) { f.registry = reg }

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.stops.Add(1)
	if f.order != nil {
		f.orderMu.Lock()
		*f.order = append(*f.order, f.protocol)
		f.orderMu.Unlock()
	}
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func TestServer_AddAdapter(t *testing.T) {
	reg := registry.NewRegistry()
	srv := New(reg, Options{})

	a := newFakeAdapter("WOPI", 8080)
	require.NoError(t, srv.AddAdapter(a))
	assert.Same(t, reg, a.registry, "registry is injected on registration")

	err := srv.AddAdapter(newFakeAdapter("WOPI", 9090))
	assert.ErrorContains(t, err, "already registered")

	err = srv.AddAdapter(newFakeAdapter("ADMIN", 8080))
	assert.ErrorContains(t, err, "port 8080")

	require.NoError(t, srv.AddAdapter(newFakeAdapter("A0", 0)))
	require.NoError(t, srv.AddAdapter(newFakeAdapter("B0", 0)), "port 0 never conflicts")

	assert.Len(t, srv.Adapters(), 3)
}

func TestServer_ServeWithoutAdapters(t *testing.T) {
	srv := New(registry.NewRegistry(), Options{})
	err := srv.Serve(context.Background())
	assert.ErrorContains(t, err, "no adapters")
}

func TestServer_CancelStopsAdaptersInReverseOrder(t *testing.T) {
	srv := New(registry.NewRegistry(), Options{ShutdownTimeout: time.Second})

	var order []string
	var mu sync.Mutex
	first := newFakeAdapter("FIRST", 1)
	second := newFakeAdapter("SECOND", 2)
	for _, a := range []*fakeAdapter{first, second} {
		a.order, a.orderMu = &order, &mu
		require.NoError(t, srv.AddAdapter(a))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	<-first.started
	<-second.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"SECOND", "FIRST"}, order)

	assert.ErrorIs(t, srv.Serve(context.Background()), ErrAlreadyServed)
	assert.Error(t, srv.AddAdapter(newFakeAdapter("LATE", 3)))
}

func TestServer_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(registry.NewRegistry(), Options{ShutdownTimeout: time.Second})

	healthy := newFakeAdapter("HEALTHY", 1)
	broken := newFakeAdapter("BROKEN", 2)
	broken.failWith = errors.New("bind: address already in use")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BROKEN adapter error")
		assert.Contains(t, err.Error(), "address already in use")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after adapter failure")
	}
	assert.Equal(t, int32(1), healthy.stops.Load())
}
