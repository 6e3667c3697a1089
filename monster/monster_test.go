package monster

import (
	"testing"
	"time"

	"github.com/ironfield/server/aoi"
)

type fakeEnv struct {
	players map[uint64]aoi.Vec2
	stats   map[uint64]Stats
	dirty   map[uint64]bool
	removed map[uint64]bool

	aiEvents      []AIState
	combatEvents  int
	monsterStats  []Stats
	playerStats   []Stats
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		players: make(map[uint64]aoi.Vec2),
		stats:   make(map[uint64]Stats),
		dirty:   make(map[uint64]bool),
		removed: make(map[uint64]bool),
	}
}

func (e *fakeEnv) FindClosestPlayer(pos aoi.Vec2, maxRange float64) (uint64, aoi.Vec2, bool) {
	var bestID uint64
	var bestPos aoi.Vec2
	bestDist := maxRange
	found := false
	for id, p := range e.players {
		d := distance(pos, p)
		if d <= bestDist {
			bestDist = d
			bestID = id
			bestPos = p
			found = true
		}
	}
	return bestID, bestPos, found
}

func (e *fakeEnv) PlayerPosition(id uint64) (aoi.Vec2, bool) {
	p, ok := e.players[id]
	return p, ok
}

func (e *fakeEnv) PlayerStats(id uint64) (Stats, bool) {
	s, ok := e.stats[id]
	return s, ok
}

func (e *fakeEnv) SetPlayerStats(id uint64, stats Stats) {
	e.stats[id] = stats
	e.playerStats = append(e.playerStats, stats)
}

func (e *fakeEnv) MarkPlayerDirty(id uint64) { e.dirty[id] = true }

func (e *fakeEnv) MoveMonster(id uint64, pos aoi.Vec2) {}

func (e *fakeEnv) RemoveFromAOI(id uint64) { e.removed[id] = true }

func (e *fakeEnv) BroadcastAIState(id uint64, state AIState) { e.aiEvents = append(e.aiEvents, state) }

func (e *fakeEnv) BroadcastMonsterStat(id uint64, stats Stats) { e.monsterStats = append(e.monsterStats, stats) }

func (e *fakeEnv) BroadcastPlayerStat(id uint64, stats Stats) {}

func (e *fakeEnv) BroadcastCombat(attackerID, targetID uint64, damage int) { e.combatEvents++ }

func TestAISystemAggroTransitionsToChase(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 0, aoi.Vec2{X: 0, Y: 0})
	env := newFakeEnv()
	env.players[99] = aoi.Vec2{X: 1, Y: 0}
	env.stats[99] = Stats{HP: 100, MaxHP: 100}

	sys := NewAISystem()
	sys.Tick(store, env, time.Unix(0, 1))

	state, _ := store.State(1)
	if state != Chase {
		t.Fatalf("expected Chase, got %v", state)
	}
}

func TestAISystemFleesBelowHPThreshold(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 0, aoi.Vec2{X: 0, Y: 0})
	store.components[1].stats.HP = 5 // 5/40 < 0.2
	env := newFakeEnv()

	sys := NewAISystem()
	sys.Tick(store, env, time.Unix(0, 1))

	state, _ := store.State(1)
	if state != Flee {
		t.Fatalf("expected Flee at low hp, got %v", state)
	}
}

func TestAISystemDiesAtZeroHP(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 0, aoi.Vec2{X: 0, Y: 0})
	store.components[1].stats.HP = 0
	env := newFakeEnv()

	sys := NewAISystem()
	sys.Tick(store, env, time.Unix(0, 1))

	state, _ := store.State(1)
	if state != Dead {
		t.Fatalf("expected Dead, got %v", state)
	}
	if !env.removed[1] {
		t.Fatalf("dead monster should be removed from AOI")
	}
}

func TestCombatSystemResolvesAttackAndBroadcasts(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 1, aoi.Vec2{X: 0, Y: 0}) // duelist, atk 10
	store.components[1].state = Attack
	store.components[1].target = 99

	env := newFakeEnv()
	env.stats[99] = Stats{HP: 50, MaxHP: 50, Def: 4}

	sys := NewCombatSystem()
	sys.Tick(store, env, time.Unix(0, int64(2*time.Second)))

	if env.combatEvents != 1 {
		t.Fatalf("expected one combat broadcast, got %d", env.combatEvents)
	}
	got := env.stats[99]
	want := 50 - ResolveAttack(Stats{Atk: 10}, Stats{Def: 4})
	if got.HP != want {
		t.Fatalf("expected hp %d, got %d", want, got.HP)
	}
	if !env.dirty[99] {
		t.Fatalf("attacked player should be marked dirty")
	}
}

func TestCombatSystemRespectsCooldown(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 1, aoi.Vec2{X: 0, Y: 0})
	store.components[1].state = Attack
	store.components[1].target = 99
	store.components[1].lastAttack = time.Unix(0, int64(time.Second)).UnixNano()

	env := newFakeEnv()
	env.stats[99] = Stats{HP: 50, MaxHP: 50}

	sys := NewCombatSystem()
	sys.Tick(store, env, time.Unix(0, int64(time.Second)+int64(500*time.Millisecond)))

	if env.combatEvents != 0 {
		t.Fatalf("expected attack suppressed by cooldown, got %d events", env.combatEvents)
	}
}

func TestApplyPlayerAttackKillsMonster(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 0, aoi.Vec2{X: 0, Y: 0})
	store.components[1].stats.HP = 1

	env := newFakeEnv()
	sys := NewCombatSystem()
	dmg, dead, ok := sys.ApplyPlayerAttack(store, env, Stats{Atk: 20}, 1)
	if !ok {
		t.Fatalf("expected attack to resolve")
	}
	if !dead {
		t.Fatalf("expected monster to die, dmg=%d", dmg)
	}
	if env.combatEvents != 1 || len(env.monsterStats) != 1 {
		t.Fatalf("expected one combat and one monster-stat broadcast")
	}
}

func TestResolveAttackFloorsAtOne(t *testing.T) {
	dmg := ResolveAttack(Stats{Atk: 1}, Stats{Def: 100})
	if dmg != 1 {
		t.Fatalf("expected damage floored at 1, got %d", dmg)
	}
}

func TestMovementSystemChasesTarget(t *testing.T) {
	store := NewStore()
	store.Spawn(1, 0, aoi.Vec2{X: 0, Y: 0})
	store.components[1].state = Chase
	store.components[1].target = 99

	env := newFakeEnv()
	env.players[99] = aoi.Vec2{X: 10, Y: 0}

	sys := NewMovementSystem(1)
	sys.Tick(store, env, 1.0)

	pos, _ := store.Position(1)
	if pos.X <= 0 {
		t.Fatalf("expected monster to move toward target, pos=%+v", pos)
	}
}
