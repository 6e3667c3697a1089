package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCache struct {
	mu       sync.Mutex
	writes   []map[uint64]RTFields
	data     map[uint64]UserSnapshot
	failNext bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[uint64]UserSnapshot)}
}

func (c *fakeCache) WriteRealtime(ctx context.Context, entries map[uint64]RTFields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return errors.New("write failed")
	}
	cp := make(map[uint64]RTFields, len(entries))
	for k, v := range entries {
		cp[k] = v
		c.data[k] = UserSnapshot{UID: k, RTFields: v}
	}
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeCache) FetchUsers(ctx context.Context, uids []uint64) (map[uint64]UserSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]UserSnapshot)
	for _, uid := range uids {
		if u, ok := c.data[uid]; ok {
			out[uid] = u
		}
	}
	return out, nil
}

type fakeDurable struct {
	mu      sync.Mutex
	batches [][]UserSnapshot
	failAll bool
}

func (d *fakeDurable) UpsertBatch(ctx context.Context, batch []UserSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return errors.New("upsert failed")
	}
	d.batches = append(d.batches, batch)
	return nil
}

type fakeConnector struct {
	mu           sync.Mutex
	disconnected int
}

func (c *fakeConnector) EnsureConnected(ctx context.Context) error { return nil }
func (c *fakeConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestFlushMovesDirtyUIDsThroughToDurableStore(t *testing.T) {
	cache := newFakeCache()
	cache.data[1] = UserSnapshot{UID: 1, RTFields: RTFields{X: 1, Z: 1, HP: 100, SP: 10}}
	durable := &fakeDurable{}
	conn := &fakeConnector{}

	sys := New(Config{FlushInterval: 20 * time.Millisecond, MaxBatchUIDs: 50}, cache, durable, conn, nil, nil)
	sys.MarkDirty(1)

	ctx, cancel := context.WithCancel(context.Background())
	go sys.Run(ctx)
	defer cancel()

	waitFor(t, time.Second, func() bool {
		durable.mu.Lock()
		defer durable.mu.Unlock()
		return len(durable.batches) == 1 && len(durable.batches[0]) == 1
	})
}

func TestQueueFullReMarksDirty(t *testing.T) {
	cache := newFakeCache()
	durable := &fakeDurable{}
	conn := &fakeConnector{}

	sys := New(Config{FlushInterval: time.Hour, MaxBatchUIDs: 1, MaxQueue: 1}, cache, durable, conn, nil, nil)

	// Fill the job queue directly so onTimer's push fails.
	sys.jobQueue <- DbJob{UIDs: []uint64{999}}

	sys.MarkDirty(1)
	sys.onTimer()

	remaining := sys.dirty.StealAll()
	found := false
	for _, uid := range remaining {
		if uid == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("uid 1 should have been re-marked dirty after a full-queue push failure, got %v", remaining)
	}
}

func TestDurableUpsertFailureReMarksDirty(t *testing.T) {
	// Open Question resolution: SP-call failure re-marks dirty, not just
	// queue-full backpressure.
	cache := newFakeCache()
	cache.data[5] = UserSnapshot{UID: 5, RTFields: RTFields{HP: 10}}
	durable := &fakeDurable{failAll: true}
	conn := &fakeConnector{}

	sys := New(Config{FlushInterval: time.Hour, MaxBatchUIDs: 50}, cache, durable, conn, nil, nil)
	sys.handleJob(context.Background(), DbJob{UIDs: []uint64{5}, BatchID: 1})

	remaining := sys.dirty.StealAll()
	if len(remaining) != 1 || remaining[0] != 5 {
		t.Fatalf("expected uid 5 re-marked dirty after durable upsert failure, got %v", remaining)
	}
	if conn.disconnected == 0 {
		t.Fatalf("expected connector to be disconnected after durable failure")
	}
}

func TestEmptyDirtySetStillFlushesRealtimeWrites(t *testing.T) {
	cache := newFakeCache()
	durable := &fakeDurable{}
	conn := &fakeConnector{}

	sys := New(Config{FlushInterval: time.Hour, MaxBatchUIDs: 50, MaxQueue: 10}, cache, durable, conn, nil, nil)
	sys.enqueueRealtime(7, RTFields{HP: 50})

	sys.onTimer()

	select {
	case job := <-sys.jobQueue:
		if !job.Empty() {
			t.Fatalf("expected a sentinel empty job, got %+v", job)
		}
	default:
		t.Fatalf("expected a sentinel job to be pushed to flush pending real-time writes")
	}
}

func TestRealtimeFlushDisconnectsWithoutRestoringOnFailure(t *testing.T) {
	cache := newFakeCache()
	cache.failNext = true
	durable := &fakeDurable{}
	conn := &fakeConnector{}

	sys := New(Config{}, cache, durable, conn, nil, nil)
	sys.enqueueRealtime(3, RTFields{HP: 1})
	sys.flushRTWrites(context.Background())

	if conn.disconnected != 1 {
		t.Fatalf("expected disconnect on real-time flush failure, got %d", conn.disconnected)
	}
	sys.rtMu.Lock()
	pending := len(sys.rtQueue)
	sys.rtMu.Unlock()
	if pending != 0 {
		t.Fatalf("failed real-time entries are not restored by design, got %d still queued", pending)
	}
}

func TestDirtyHubShardingAndStealAll(t *testing.T) {
	h := NewDirtyHub()
	h.MarkDirty(1)
	h.MarkDirty(65) // same shard as 1 (65 & 63 == 1)
	h.MarkDirty(2)

	if h.Size() != 3 {
		t.Fatalf("expected 3 dirty uids, got %d", h.Size())
	}
	stolen := h.StealAll()
	if len(stolen) != 3 {
		t.Fatalf("expected StealAll to return 3 uids, got %d", len(stolen))
	}
	if h.Size() != 0 {
		t.Fatalf("expected dirty hub empty after StealAll, got %d", h.Size())
	}
}
