package field

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the set of live field workers, creating them lazily and
// starting each one's run loop exactly once.
type Manager struct {
	cfg      WorkerConfig
	dispatch Dispatcher
	dirty    DirtyMarker
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[uint64]*Worker
}

// NewManager builds a field manager. ctx bounds the lifetime of every
// worker it spawns; cancelling it stops all fields.
func NewManager(ctx context.Context, cfg WorkerConfig, dispatch Dispatcher, dirty DirtyMarker, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	wctx, cancel := context.WithCancel(ctx)
	return &Manager{
		cfg:      cfg,
		dispatch: dispatch,
		dirty:    dirty,
		log:      log,
		ctx:      wctx,
		cancel:   cancel,
		workers:  make(map[uint64]*Worker),
	}
}

// Field returns the worker for fieldID, creating and starting it on
// first access. SeedFieldID is seeded with monsters; all other fields
// start empty, matching the original's single hardcoded spawn field.
func (m *Manager) Field(fieldID uint64) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workers[fieldID]; ok {
		return w
	}

	cfg := m.cfg
	cfg.SeedMonsters = fieldID == SeedFieldID
	w := NewWorker(fieldID, cfg, m.dispatch, m.dirty, m.log.With("component", "field"))
	m.workers[fieldID] = w
	go w.Run(m.ctx)
	m.log.Info("field started", "field_id", fieldID, "seeded", cfg.SeedMonsters)
	return w
}

// Lookup returns the worker for fieldID without creating one.
func (m *Manager) Lookup(fieldID uint64) (*Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[fieldID]
	return w, ok
}

// Shutdown stops every running field worker and waits for each to exit.
func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()
	for _, w := range workers {
		w.wg.Wait()
	}
}

// String implements fmt.Stringer for logging convenience.
func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("field.Manager{fields=%d}", len(m.workers))
}
