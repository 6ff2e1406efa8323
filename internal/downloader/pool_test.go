package downloader

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosync/pkg/logger"
	"photosync/pkg/storage"
)

type mockItem struct {
	id      string
	body    string
	openErr error
	delay   time.Duration
}

func (m *mockItem) ID() string       { return m.id }
func (m *mockItem) Filename() string { return m.id + ".jpg" }

func (m *mockItem) Open(ctx context.Context) (io.ReadCloser, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	return io.NopCloser(strings.NewReader(m.body)), nil
}

type mockStore struct {
	mu       sync.Mutex
	placed   map[string]string
	failName string
	calls    int32
}

func newMockStore() *mockStore {
	return &mockStore{placed: make(map[string]string)}
}

func (m *mockStore) Place(ctx context.Context, name string, r io.Reader, createdAt time.Time, haveTime bool) (*storage.LocalFile, error) {
	atomic.AddInt32(&m.calls, 1)
	if name == m.failName {
		return nil, errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.placed[name] = string(data)
	m.mu.Unlock()
	return &storage.LocalFile{Path: "/out/" + name, Name: name, Size: int64(len(data)), ModTimeSet: haveTime}, nil
}

// drain submits jobs in order and collects every result.
func drain(t *testing.T, wp *WorkerPool, items []Item) []Result {
	t.Helper()

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range wp.Results() {
			results = append(results, r)
		}
		close(done)
	}()

	wp.Start()
	for i, item := range items {
		if wp.Stopped() {
			break
		}
		if err := wp.Submit(Job{Seq: i, Item: item, HaveTime: true}); err != nil {
			require.ErrorIs(t, err, ErrStopped)
			break
		}
	}
	wp.Stop()
	<-done
	return results
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	store := newMockStore()
	wp := NewWorkerPool(context.Background(), 3, store, logger.NewNopLogger())

	items := []Item{
		&mockItem{id: "a", body: "aaa"},
		&mockItem{id: "b", body: "bb"},
		&mockItem{id: "c", body: "c"},
	}
	results := drain(t, wp, items)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success(), "job %d", r.Job.Seq)
		assert.True(t, r.File.ModTimeSet)
	}
	assert.Equal(t, "aaa", store.placed["a.jpg"])
	assert.NoError(t, wp.Err())
	assert.False(t, wp.Stopped())
}

func TestWorkerPoolSequentialStopsOnFirstFailure(t *testing.T) {
	store := newMockStore()
	store.failName = "b.jpg"
	wp := NewWorkerPool(context.Background(), 1, store, logger.NewNopLogger())

	items := []Item{
		&mockItem{id: "a", body: "1"},
		&mockItem{id: "b", body: "2"},
		&mockItem{id: "c", body: "3"},
		&mockItem{id: "d", body: "4"},
	}
	results := drain(t, wp, items)

	assert.True(t, wp.Stopped())
	assert.ErrorContains(t, wp.Err(), "disk full")

	var succeeded, failed int
	for _, r := range results {
		switch {
		case r.Success():
			succeeded++
			assert.Equal(t, "a", r.Job.Item.ID())
		case r.Error != nil:
			failed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.LessOrEqual(t, atomic.LoadInt32(&store.calls), int32(2), "no item after the failure may be started")
	assert.NotContains(t, store.placed, "d.jpg")
}

func TestWorkerPoolOpenError(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 1, newMockStore(), logger.NewNopLogger())

	results := drain(t, wp, []Item{&mockItem{id: "x", openErr: errors.New("connection reset")}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success())
	assert.ErrorContains(t, results[0].Error, "connection reset")
	assert.True(t, wp.Stopped())
}

func TestWorkerPoolConcurrency(t *testing.T) {
	store := newMockStore()
	wp := NewWorkerPool(context.Background(), 4, store, logger.NewNopLogger())

	var items []Item
	for i := 0; i < 8; i++ {
		items = append(items, &mockItem{id: string(rune('a' + i)), body: "x", delay: 50 * time.Millisecond})
	}

	start := time.Now()
	results := drain(t, wp, items)
	elapsed := time.Since(start)

	assert.Len(t, results, 8)
	assert.Less(t, elapsed, 300*time.Millisecond, "jobs should overlap across workers")
}

func TestWorkerPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wp := NewWorkerPool(ctx, 1, newMockStore(), logger.NewNopLogger())

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range wp.Results() {
			results = append(results, r)
		}
		close(done)
	}()
	wp.Start()

	require.NoError(t, wp.Submit(Job{Seq: 0, Item: &mockItem{id: "slow", delay: time.Second}}))
	cancel()
	require.Eventually(t, wp.Stopped, time.Second, 5*time.Millisecond)

	err := wp.Submit(Job{Seq: 1, Item: &mockItem{id: "next"}})
	assert.ErrorIs(t, err, ErrStopped)

	wp.Stop()
	<-done

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.ErrorIs(t, wp.Err(), context.Canceled)
}
