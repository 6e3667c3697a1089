package monster

import (
	"math/rand"

	"github.com/ironfield/server/aoi"
)

// Effect is the result of computing one monster's movement for a tick: a
// new position to commit, deferred until the caller decides to apply and
// broadcast it. Mirrors the compute-then-send separation the teacher's own
// movement computer uses, rather than moving and notifying inline.
type Effect struct {
	ID       uint64
	Pos      aoi.Vec2
	Moved    bool
}

// Send commits the effect's position to both the component store and the
// AOI world, and is the only place a monster's position actually changes.
func (e Effect) Send(store *Store, env Environment) {
	if !e.Moved {
		return
	}
	store.mu.Lock()
	if c, ok := store.components[e.ID]; ok {
		c.pos = e.Pos
	}
	store.mu.Unlock()
	env.MoveMonster(e.ID, e.Pos)
}

// MovementSystem advances monster positions according to their current AI
// state: patrolling wanders near a home point, chasing closes on the
// target player, fleeing runs directly away from it.
type MovementSystem struct {
	Tuning Tuning
	rng    *rand.Rand
}

// NewMovementSystem builds a MovementSystem with the default tuning
// policy and a private random source for patrol wander targets.
func NewMovementSystem(seed int64) *MovementSystem {
	return &MovementSystem{Tuning: DefaultTuning, rng: rand.New(rand.NewSource(seed))}
}

// Tick computes movement effects for every monster in store and applies
// them immediately.
func (sys *MovementSystem) Tick(store *Store, env Environment, dt float64) {
	for _, id := range store.Ids() {
		eff := sys.computeOne(store, env, id, dt)
		eff.Send(store, env)
	}
}

func (sys *MovementSystem) computeOne(store *Store, env Environment, id uint64, dt float64) Effect {
	store.mu.Lock()
	c, ok := store.components[id]
	if !ok {
		store.mu.Unlock()
		return Effect{ID: id}
	}
	state := c.state
	pos := c.pos
	home := c.home
	target := c.target
	archetype := c.archetype
	store.mu.Unlock()

	speed := sys.Tuning.speedFor(state, archetype)
	if speed == 0 {
		return Effect{ID: id}
	}

	var dirX, dirY float64
	switch state {
	case Patrol:
		dirX, dirY = normalize(home.X-pos.X+(sys.rng.Float64()-0.5)*sys.Tuning.PatrolRadius, home.Y-pos.Y+(sys.rng.Float64()-0.5)*sys.Tuning.PatrolRadius)
	case Chase:
		ppos, found := env.PlayerPosition(target)
		if !found {
			return Effect{ID: id}
		}
		dirX, dirY = normalize(ppos.X-pos.X, ppos.Y-pos.Y)
	case Flee:
		ppos, found := env.PlayerPosition(target)
		if !found {
			return Effect{ID: id}
		}
		dirX, dirY = normalize(pos.X-ppos.X, pos.Y-ppos.Y)
	default:
		return Effect{ID: id}
	}

	if dirX == 0 && dirY == 0 {
		return Effect{ID: id}
	}

	newPos := aoi.Vec2{X: pos.X + dirX*speed*dt, Y: pos.Y + dirY*speed*dt}
	return Effect{ID: id, Pos: newPos, Moved: true}
}
