package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxQueue = 360

// Config configures the write-behind pipeline.
type Config struct {
	FlushInterval time.Duration
	MaxBatchUIDs  int
	MaxQueue      int
}

// System is the write-behind persistence pipeline: a DirtyHub, a
// real-time write queue flushed on every timer tick straight to cache,
// and a bounded job queue drained by a single durable-store worker
// goroutine.
type System struct {
	cfg Config

	dirty *DirtyHub

	rtMu      sync.Mutex
	rtQueue   map[uint64]RTFields
	rtPending int64 // atomic

	jobQueue  chan DbJob
	nextBatch uint64

	cache     CacheWriter
	durable   DurableWriter
	connector Connector

	metrics *Metrics
	log     *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a storage System. cache/durable/connector may be fakes in
// tests; in production they're RedisCache/MySQLDurable/RedisMySQLConnector.
func New(cfg Config, cache CacheWriter, durable DurableWriter, connector Connector, metrics *Metrics, log *slog.Logger) *System {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.MaxBatchUIDs <= 0 {
		cfg.MaxBatchUIDs = 200
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = defaultMaxQueue
	}
	if log == nil {
		log = slog.Default()
	}
	return &System{
		cfg:       cfg,
		dirty:     NewDirtyHub(),
		rtQueue:   make(map[uint64]RTFields),
		jobQueue:  make(chan DbJob, cfg.MaxQueue),
		cache:     cache,
		durable:   durable,
		connector: connector,
		metrics:   metrics,
		log:       log.With("component", "storage"),
		stop:      make(chan struct{}),
	}
}

// MarkDirty implements field.DirtyMarker.
func (s *System) MarkDirty(uid uint64) {
	s.dirty.MarkDirty(uid)
}

// EnqueueRealtime pushes a player's current position/stats onto the
// real-time write queue, overwriting any not-yet-flushed entry for the
// same uid. This is cache-only, eager, and independent of the dirty/DB
// pipeline. It implements field.DirtyMarker's real-time half with plain
// values so field never has to import this package's RTFields type.
func (s *System) EnqueueRealtime(uid uint64, x, z float64, hp, sp int) {
	s.enqueueRealtime(uid, RTFields{X: x, Z: z, HP: hp, SP: sp})
}

func (s *System) enqueueRealtime(uid uint64, fields RTFields) {
	s.rtMu.Lock()
	if _, queued := s.rtQueue[uid]; !queued {
		atomic.AddInt64(&s.rtPending, 1)
	}
	s.rtQueue[uid] = fields
	s.rtMu.Unlock()
}

// Run starts the flush timer and the durable-store worker goroutine, and
// blocks until ctx is cancelled or Stop is called.
func (s *System) Run(ctx context.Context) {
	s.wg.Add(2)
	go s.flushTimerLoop(ctx)
	go s.dbWorkerLoop(ctx)
	<-ctx.Done()
	s.Stop()
}

// Stop signals both background goroutines to exit and waits for them.
func (s *System) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.wg.Wait()
}

func (s *System) flushTimerLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.onTimer()
		}
	}
}

// onTimer steals the full dirty set and chunks it into bounded jobs. If
// nothing is dirty but real-time writes are pending, an empty sentinel
// job is still pushed so the DB worker's flushRTWrites step runs. A chunk
// whose push fails because the job queue is full has its uids re-marked
// dirty immediately, so nothing is silently dropped under backpressure.
func (s *System) onTimer() {
	if s.metrics != nil {
		s.metrics.DirtySetSize.Set(float64(s.dirty.Size()))
		s.metrics.RTPending.Set(float64(atomic.LoadInt64(&s.rtPending)))
	}

	uids := s.dirty.StealAll()
	if len(uids) == 0 {
		if atomic.LoadInt64(&s.rtPending) > 0 {
			s.tryPush(DbJob{EnqueuedAt: time.Now()})
		}
		return
	}

	for i := 0; i < len(uids); i += s.cfg.MaxBatchUIDs {
		end := i + s.cfg.MaxBatchUIDs
		if end > len(uids) {
			end = len(uids)
		}
		chunk := uids[i:end]
		s.nextBatch++
		job := DbJob{UIDs: chunk, EnqueuedAt: time.Now(), BatchID: s.nextBatch}
		if !s.tryPush(job) {
			s.log.Warn("db job queue full, re-marking batch dirty", "batch_id", job.BatchID, "uids", len(chunk))
			s.dirty.MarkManyDirty(chunk)
		}
	}
}

func (s *System) tryPush(job DbJob) bool {
	select {
	case s.jobQueue <- job:
		if s.metrics != nil {
			s.metrics.DBQueueDepth.Set(float64(len(s.jobQueue)))
		}
		return true
	default:
		return false
	}
}

func (s *System) dbWorkerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case job := <-s.jobQueue:
			if s.metrics != nil {
				s.metrics.DBQueueDepth.Set(float64(len(s.jobQueue)))
			}
			s.handleJob(ctx, job)
		}
	}
}

// handleJob reproduces Impl::handle_db_job's exact sequencing: ensure
// connectivity, flush real-time writes, ensure connectivity again (the
// flush may have torn the connection down on failure), then — only if
// the job actually carries uids — fetch and upsert the durable batch.
func (s *System) handleJob(ctx context.Context, job DbJob) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.FlushDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := s.ensureConnected(ctx); err != nil {
		s.log.Error("failed to connect storage backends", "error", err)
		return
	}

	s.flushRTWrites(ctx)

	if err := s.ensureConnected(ctx); err != nil {
		s.log.Error("failed to reconnect storage backends before db upsert", "error", err)
		return
	}

	if job.Empty() {
		return
	}

	users, err := s.cache.FetchUsers(ctx, job.UIDs)
	if err != nil {
		s.log.Error("fetch users from cache failed", "batch_id", job.BatchID, "error", err)
		s.connector.Disconnect()
		s.recordFlushFailure(job.UIDs)
		return
	}

	batch := make([]UserSnapshot, 0, len(users))
	for _, u := range users {
		batch = append(batch, u)
	}

	if err := s.durable.UpsertBatch(ctx, batch); err != nil {
		s.log.Error("durable upsert batch failed", "batch_id", job.BatchID, "error", err)
		s.connector.Disconnect()
		// Unlike the original, which only re-marks on queue-full
		// backpressure, a failed stored-procedure call here also
		// re-marks every uid in the batch dirty so a transient DB
		// outage never silently drops state.
		s.recordFlushFailure(job.UIDs)
		return
	}
}

func (s *System) recordFlushFailure(uids []uint64) {
	s.dirty.MarkManyDirty(uids)
	if s.metrics != nil {
		s.metrics.FlushFailures.Inc()
	}
}

func (s *System) ensureConnected(ctx context.Context) error {
	if s.connector == nil {
		return nil
	}
	return s.connector.EnsureConnected(ctx)
}

// flushRTWrites swaps the pending real-time queue out under lock and
// writes it straight to cache. On failure the connection is torn down
// without restoring the swapped-out entries — by design, matching the
// original: real-time writes are best-effort and not re-queued.
func (s *System) flushRTWrites(ctx context.Context) {
	s.rtMu.Lock()
	if len(s.rtQueue) == 0 {
		s.rtMu.Unlock()
		return
	}
	local := s.rtQueue
	s.rtQueue = make(map[uint64]RTFields)
	s.rtMu.Unlock()
	atomic.AddInt64(&s.rtPending, -int64(len(local)))

	if err := s.cache.WriteRealtime(ctx, local); err != nil {
		s.log.Error("real-time cache flush failed", "entries", len(local), "error", err)
		s.connector.Disconnect()
	}
}
