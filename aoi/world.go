// Package aoi implements the area-of-interest spatial index shared by all
// field workers: a sector grid that tracks which entities are visible to
// which players and emits diff-based Enter/Leave/Move/Snapshot events as
// entities move between sectors.
package aoi

import (
	"math"
	"sync"
)

// EntityType distinguishes the two kinds of entity the index tracks.
// Player entities hold sector subscriptions of their own; monster entities
// are watched but never watch anything themselves.
type EntityType uint8

const (
	EntityPlayer EntityType = iota
	EntityMonster
)

// Vec2 is a position in the flat, 2D field plane.
type Vec2 struct {
	X, Y float64
}

// Sector identifies one cell of the grid the world is partitioned into.
// Both axes are clamped to the non-negative quadrant: a sector never has a
// negative coordinate, matching the original's world_to_sector behaviour.
type Sector struct {
	X, Y int
}

// EventKind distinguishes the four notifications World emits.
type EventKind uint8

const (
	// Enter is sent to existing watchers when a new entity becomes visible.
	Enter EventKind = iota
	// Leave is sent when an entity stops being visible to a watcher.
	Leave
	// Move is sent to every watcher of an entity's current sector whenever
	// its position changes (after Enter, for watchers it has just come into
	// view of), and echoed to a moving player itself.
	Move
	// Snapshot is sent to a player, once per newly-subscribed sector, for
	// every entity already present there.
	Snapshot
)

// Event is a single AOI notification destined for one watcher.
type Event struct {
	Kind   EventKind
	Entity EntityView
}

// EntityView is the read-only projection of an entity handed to watchers.
type EntityView struct {
	ID   uint64
	Type EntityType
	Pos  Vec2
}

// Sender delivers an event to the player identified by `to`. ExcludeID
// conventions live in World; Sender is only ever called with a real
// recipient.
type Sender func(to uint64, ev Event)

type entityState struct {
	id     uint64
	typ    EntityType
	pos    Vec2
	sector Sector

	// subscribed is non-nil only for players: the set of sectors this
	// player currently has a view subscription on.
	subscribed map[Sector]struct{}
}

// sectorState tracks one grid cell's two distinct id sets: entities holds
// whoever physically occupies the cell, watchers holds the players that
// have the cell in view. An entity's presence in a cell says nothing about
// who is allowed to see it; that's what watchers is for.
type sectorState struct {
	entities map[uint64]struct{}
	watchers map[uint64]struct{}
}

// World is a sector-grid AOI index. All exported methods are safe for
// concurrent use; the zero value is not usable, use New.
type World struct {
	mu sync.Mutex

	sectorSize float64
	viewRadius int

	send Sender

	entities map[uint64]*entityState
	sectors  map[Sector]*sectorState
}

// New creates a World. sectorSize is the edge length of one grid cell;
// viewRadius is how many sectors out from an entity's own sector a player
// subscribes to (a viewRadius of r subscribes to a (2r+1)x(2r+1) square).
// send is invoked, synchronously and while World's internal lock is held,
// to deliver every event; it must not call back into World.
func New(sectorSize float64, viewRadius int, send Sender) *World {
	return &World{
		sectorSize: sectorSize,
		viewRadius: viewRadius,
		send:       send,
		entities:   make(map[uint64]*entityState),
		sectors:    make(map[Sector]*sectorState),
	}
}

func (w *World) worldToSector(pos Vec2) Sector {
	x := int(math.Floor(pos.X / w.sectorSize))
	y := int(math.Floor(pos.Y / w.sectorSize))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return Sector{X: x, Y: y}
}

// collectViewSectors returns the (2r+1)^2 square of sectors centred on
// center, skipping any sector with a negative coordinate entirely rather
// than clamping it into the set.
func (w *World) collectViewSectors(center Sector) map[Sector]struct{} {
	out := make(map[Sector]struct{}, (2*w.viewRadius+1)*(2*w.viewRadius+1))
	for dx := -w.viewRadius; dx <= w.viewRadius; dx++ {
		for dy := -w.viewRadius; dy <= w.viewRadius; dy++ {
			sx, sy := center.X+dx, center.Y+dy
			if sx < 0 || sy < 0 {
				continue
			}
			out[Sector{X: sx, Y: sy}] = struct{}{}
		}
	}
	return out
}

func (w *World) getOrCreateSector(s Sector) *sectorState {
	bucket, ok := w.sectors[s]
	if !ok {
		bucket = &sectorState{entities: make(map[uint64]struct{}), watchers: make(map[uint64]struct{})}
		w.sectors[s] = bucket
	}
	return bucket
}

// pruneSectorIfEmpty drops a sector's bucket once it has neither occupants
// nor watchers left, so empty cells don't linger in the map forever.
func (w *World) pruneSectorIfEmpty(s Sector) {
	if bucket, ok := w.sectors[s]; ok && len(bucket.entities) == 0 && len(bucket.watchers) == 0 {
		delete(w.sectors, s)
	}
}

func (w *World) enterSector(id uint64, s Sector) {
	w.getOrCreateSector(s).entities[id] = struct{}{}
}

func (w *World) leaveSector(id uint64, s Sector) {
	bucket, ok := w.sectors[s]
	if !ok {
		return
	}
	delete(bucket.entities, id)
	w.pruneSectorIfEmpty(s)
}

func (w *World) view(e *entityState) EntityView {
	return EntityView{ID: e.id, Type: e.typ, Pos: e.pos}
}

// watchersOf returns the ids of every player watching sector s, i.e. that
// has it in their current subscription set. This is distinct from the
// entities physically occupying s: a player watches every sector within
// its view radius whether or not it stands in that particular cell.
func (w *World) watchersOf(s Sector) []uint64 {
	bucket, ok := w.sectors[s]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, len(bucket.watchers))
	for id := range bucket.watchers {
		out = append(out, id)
	}
	return out
}

func (w *World) broadcastToSector(s Sector, excludeID uint64, ev Event) {
	for _, watcher := range w.watchersOf(s) {
		if watcher == excludeID {
			continue
		}
		w.send(watcher, ev)
	}
}

// AddEntity registers a new entity at pos. Existing watchers of its sector
// receive an Enter event; if the entity is itself a player, its own view
// subscriptions are built immediately, delivering a Snapshot for every
// sector newly in view.
func (w *World) AddEntity(id uint64, typ EntityType, pos Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sector := w.worldToSector(pos)
	e := &entityState{id: id, typ: typ, pos: pos, sector: sector}
	if typ == EntityPlayer {
		e.subscribed = make(map[Sector]struct{})
	}
	w.entities[id] = e
	w.enterSector(id, sector)

	if typ == EntityPlayer {
		w.rebuildPlayerSubscriptions(e)
	}

	w.broadcastToSector(sector, id, Event{Kind: Enter, Entity: w.view(e)})
}

// RemoveEntity unregisters an entity. Watchers of its sector receive a
// Leave event first; only then is the entity cleared out of the sector
// bucket and, if it was a player, its subscription set discarded.
func (w *World) RemoveEntity(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok {
		return
	}

	w.broadcastToSector(e.sector, id, Event{Kind: Leave, Entity: w.view(e)})

	w.leaveSector(id, e.sector)
	if e.typ == EntityPlayer {
		for s := range e.subscribed {
			if bucket, ok := w.sectors[s]; ok {
				delete(bucket.watchers, id)
				w.pruneSectorIfEmpty(s)
			}
		}
		e.subscribed = nil
	}
	delete(w.entities, id)
}

// MoveEntity updates an entity's position. Sector membership is updated
// first; if the entity is a player its subscriptions are rebuilt next
// (this may itself emit Leave/Snapshot events for sectors entering or
// leaving view); only after that does the sector-watcher diff for the
// entity's own visibility run, followed by the Move broadcast to the
// entity's new sector and, for players, a direct Move echo to the mover
// itself. This ordering matches the original exactly and is load-bearing:
// reordering it changes what a client observes on its own movement.
func (w *World) MoveEntity(id uint64, pos Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok {
		return
	}

	oldSector := e.sector
	newSector := w.worldToSector(pos)
	sectorChanged := newSector != oldSector

	e.pos = pos

	if sectorChanged {
		w.leaveSector(id, oldSector)
		e.sector = newSector
		w.enterSector(id, newSector)
	}

	if e.typ == EntityPlayer {
		w.rebuildPlayerSubscriptions(e)
	}

	if sectorChanged {
		oldWatchers := w.watchersOf(oldSector)
		newWatchers := w.watchersOf(newSector)
		inNew := make(map[uint64]struct{}, len(newWatchers))
		for _, watcher := range newWatchers {
			inNew[watcher] = struct{}{}
		}
		inOld := make(map[uint64]struct{}, len(oldWatchers))
		for _, watcher := range oldWatchers {
			inOld[watcher] = struct{}{}
		}
		for _, watcher := range oldWatchers {
			if watcher == id {
				continue
			}
			if _, stillVisible := inNew[watcher]; stillVisible {
				continue
			}
			w.send(watcher, Event{Kind: Leave, Entity: w.view(e)})
		}
		for _, watcher := range newWatchers {
			if watcher == id {
				continue
			}
			if _, alreadyVisible := inOld[watcher]; alreadyVisible {
				continue
			}
			w.send(watcher, Event{Kind: Enter, Entity: w.view(e)})
		}
	}

	w.broadcastToSector(e.sector, id, Event{Kind: Move, Entity: w.view(e)})

	if e.typ == EntityPlayer {
		w.send(id, Event{Kind: Move, Entity: w.view(e)})
	}
}

// rebuildPlayerSubscriptions recomputes which sectors a player entity
// subscribes to and emits the necessary Leave/Snapshot events for the
// difference. It must be called with w.mu held.
func (w *World) rebuildPlayerSubscriptions(e *entityState) {
	newSet := w.collectViewSectors(e.sector)

	var toRemove, toAdd []Sector
	for s := range e.subscribed {
		if _, keep := newSet[s]; !keep {
			toRemove = append(toRemove, s)
		}
	}
	for s := range newSet {
		if _, had := e.subscribed[s]; !had {
			toAdd = append(toAdd, s)
		}
	}

	for _, s := range toRemove {
		bucket, ok := w.sectors[s]
		if ok {
			for otherID := range bucket.entities {
				if otherID == e.id {
					continue
				}
				other := w.entities[otherID]
				if other == nil {
					continue
				}
				// other.sector is always s here, so this can only skip
				// when s itself is still in newSet, which toRemove's
				// construction already rules out. Kept to mirror the
				// original's guard verbatim.
				if _, stillInView := newSet[other.sector]; stillInView {
					continue
				}
				w.send(e.id, Event{Kind: Leave, Entity: w.view(other)})
			}
			delete(bucket.watchers, e.id)
		}
		w.pruneSectorIfEmpty(s)
	}

	for _, s := range toAdd {
		bucket := w.getOrCreateSector(s)
		bucket.watchers[e.id] = struct{}{}
		for otherID := range bucket.entities {
			if otherID == e.id {
				continue
			}
			other := w.entities[otherID]
			if other == nil {
				continue
			}
			w.send(e.id, Event{Kind: Snapshot, Entity: w.view(other)})
		}
	}

	e.subscribed = newSet
}

// ForEachWatcher invokes fn for every player currently watching the sector
// the given entity occupies. It is used by callers that need to broadcast
// a non-positional event (AI state, stat changes) to everyone who can see
// an entity, without going through Move/Enter/Leave semantics.
func (w *World) ForEachWatcher(id uint64, fn func(watcherID uint64)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok {
		return
	}
	for _, watcher := range w.watchersOf(e.sector) {
		fn(watcher)
	}
}

// Position returns the last known position of id and whether it exists.
func (w *World) Position(id uint64) (Vec2, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return Vec2{}, false
	}
	return e.pos, true
}
