package monster

import (
	"time"

	"github.com/ironfield/server/aoi"
)

// Environment is everything the monster systems need from the field
// worker that owns them: AOI movement/removal, player lookups, and the
// broadcast hooks a tick's state changes fan out through. It replaces the
// callback-struct (MonsterEnvironment) the original wires up per field,
// as an injected capability interface instead of a record of function
// pointers.
type Environment interface {
	// FindClosestPlayer returns the nearest alive player to pos within
	// maxRange, if any.
	FindClosestPlayer(pos aoi.Vec2, maxRange float64) (id uint64, playerPos aoi.Vec2, ok bool)
	// PlayerPosition returns a player's last known position.
	PlayerPosition(id uint64) (aoi.Vec2, bool)
	// PlayerStats returns a player's current combat stats.
	PlayerStats(id uint64) (Stats, bool)
	// SetPlayerStats writes back a player's combat stats after damage.
	SetPlayerStats(id uint64, stats Stats)
	// MarkPlayerDirty notifies storage that a player's state changed.
	MarkPlayerDirty(id uint64)

	// MoveMonster updates a monster's AOI position.
	MoveMonster(id uint64, pos aoi.Vec2)
	// RemoveFromAOI unregisters a monster, e.g. on death.
	RemoveFromAOI(id uint64)

	BroadcastAIState(id uint64, state AIState)
	BroadcastMonsterStat(id uint64, stats Stats)
	BroadcastPlayerStat(id uint64, stats Stats)
	BroadcastCombat(attackerID, targetID uint64, damage int)
}

// AISystem advances every monster's behaviour state machine.
type AISystem struct {
	Tuning Tuning
}

// NewAISystem builds an AISystem with the default tuning policy.
func NewAISystem() *AISystem {
	return &AISystem{Tuning: DefaultTuning}
}

// Tick evaluates state transitions for every monster in store.
func (sys *AISystem) Tick(store *Store, env Environment, now time.Time) {
	for _, id := range store.Ids() {
		sys.tickOne(store, env, id, now)
	}
}

func (sys *AISystem) tickOne(store *Store, env Environment, id uint64, now time.Time) {
	store.mu.Lock()
	c, ok := store.components[id]
	if !ok {
		store.mu.Unlock()
		return
	}
	state := c.state
	pos := c.pos
	stats := c.stats
	target := c.target
	fleeSince := c.fleeSince
	store.mu.Unlock()

	if state == Dead {
		return
	}

	if !stats.Alive() {
		sys.transition(store, env, id, Dead)
		return
	}

	hpRatio := float64(stats.HP) / float64(stats.MaxHP)
	if hpRatio < sys.Tuning.FleeHPRatio && state != Flee {
		store.mu.Lock()
		c.fleeSince = now.UnixNano()
		store.mu.Unlock()
		sys.transition(store, env, id, Flee)
		return
	}

	switch state {
	case Flee:
		fledLongEnough := fleeSince != 0 && now.Sub(time.Unix(0, fleeSince)) >= sys.Tuning.FleeDuration
		if hpRatio > sys.Tuning.RegenHPRatio || fledLongEnough {
			sys.transition(store, env, id, Idle)
		}
	case Idle, Patrol:
		if pid, ppos, found := env.FindClosestPlayer(pos, sys.Tuning.AggroRange); found {
			store.mu.Lock()
			c.target = pid
			store.mu.Unlock()
			_ = ppos
			sys.transition(store, env, id, Chase)
		} else if state == Idle {
			sys.transition(store, env, id, Patrol)
		}
	case Chase:
		ppos, found := env.PlayerPosition(target)
		if !found {
			sys.transition(store, env, id, Idle)
			return
		}
		if distance(pos, ppos) <= sys.Tuning.AttackRange {
			sys.transition(store, env, id, Attack)
		} else if distance(pos, ppos) > sys.Tuning.AggroRange*1.5 {
			sys.transition(store, env, id, Idle)
		}
	case Attack:
		ppos, found := env.PlayerPosition(target)
		if !found {
			sys.transition(store, env, id, Idle)
			return
		}
		if distance(pos, ppos) > sys.Tuning.AttackRange {
			sys.transition(store, env, id, Chase)
		}
	}
}

func (sys *AISystem) transition(store *Store, env Environment, id uint64, next AIState) {
	store.mu.Lock()
	c, ok := store.components[id]
	if !ok {
		store.mu.Unlock()
		return
	}
	changed := c.state != next
	c.state = next
	store.mu.Unlock()

	// Broadcast before removal: watchers are looked up through the
	// monster's AOI entry, which RemoveFromAOI deletes.
	if changed {
		env.BroadcastAIState(id, next)
	}
	if next == Dead {
		env.RemoveFromAOI(id)
	}
}
