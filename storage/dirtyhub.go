// Package storage implements the write-behind persistence pipeline: a
// sharded dirty set, a real-time write queue flushed straight to cache,
// and a bounded job queue drained by a single durable-store worker.
package storage

import "sync"

const shardCount = 64

type shard struct {
	mu  sync.Mutex
	set map[uint64]struct{}
}

// DirtyHub tracks which player uids have state that needs flushing,
// sharded by the low bits of the uid to keep contention low under
// concurrent marking from many field workers.
type DirtyHub struct {
	shards [shardCount]*shard
}

// NewDirtyHub creates an empty, ready-to-use DirtyHub.
func NewDirtyHub() *DirtyHub {
	h := &DirtyHub{}
	for i := range h.shards {
		h.shards[i] = &shard{set: make(map[uint64]struct{})}
	}
	return h
}

func (h *DirtyHub) shardFor(uid uint64) *shard {
	return h.shards[uid&(shardCount-1)]
}

// MarkDirty records uid as needing a flush. Implements field.DirtyMarker.
func (h *DirtyHub) MarkDirty(uid uint64) {
	s := h.shardFor(uid)
	s.mu.Lock()
	s.set[uid] = struct{}{}
	s.mu.Unlock()
}

// MarkManyDirty re-marks every uid in uids, used when a flush attempt
// fails partway through and the affected uids must not be silently lost.
func (h *DirtyHub) MarkManyDirty(uids []uint64) {
	for _, uid := range uids {
		h.MarkDirty(uid)
	}
}

// StealAll atomically empties every shard and returns the union of what
// was dirty, in no particular order.
func (h *DirtyHub) StealAll() []uint64 {
	var out []uint64
	for _, s := range h.shards {
		s.mu.Lock()
		for uid := range s.set {
			out = append(out, uid)
		}
		s.set = make(map[uint64]struct{})
		s.mu.Unlock()
	}
	return out
}

// Size reports the total number of currently dirty uids across all
// shards, used to drive the dirty-set-size gauge.
func (h *DirtyHub) Size() int {
	n := 0
	for _, s := range h.shards {
		s.mu.Lock()
		n += len(s.set)
		s.mu.Unlock()
	}
	return n
}
