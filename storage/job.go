package storage

import "time"

// RTFields is the per-player data the real-time write queue pushes
// straight to cache: position and combat stats, the `x,z,hp,sp` fields
// of the `u:{uid}:rt` hash.
type RTFields struct {
	X, Z float64
	HP   int
	SP   int
}

// UserSnapshot is the durable-store row shape: what gets fetched back
// from cache for a dirty uid before the batch upsert call.
type UserSnapshot struct {
	UID uint64
	RTFields
}

// DbJob is one batch of uids handed to the durable-store worker. An
// empty job (no UIDs) is used as a sentinel to force a real-time flush
// even when nothing is dirty.
type DbJob struct {
	UIDs       []uint64
	EnqueuedAt time.Time
	BatchID    uint64
}

// Empty reports whether the job carries no uids.
func (j DbJob) Empty() bool { return len(j.UIDs) == 0 }
