package field

import (
	"math"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
)

// monsterEnv adapts a Worker to monster.Environment. It is only ever used
// from the worker's own goroutine, so it needs no locking beyond what the
// fields it touches (aoi.World, monster.Store) already provide.
type monsterEnv struct {
	w *Worker
}

func (e monsterEnv) FindClosestPlayer(pos aoi.Vec2, maxRange float64) (uint64, aoi.Vec2, bool) {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()

	var bestID uint64
	var bestPos aoi.Vec2
	bestDist := maxRange
	found := false
	for id, p := range e.w.players {
		if !p.Stats.Alive() {
			continue
		}
		dx, dy := p.Pos.X-pos.X, p.Pos.Y-pos.Y
		d := math.Sqrt(dx*dx + dy*dy)
		if d <= bestDist {
			bestDist = d
			bestID = id
			bestPos = p.Pos
			found = true
		}
	}
	return bestID, bestPos, found
}

func (e monsterEnv) PlayerPosition(id uint64) (aoi.Vec2, bool) {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	p, ok := e.w.players[id]
	if !ok {
		return aoi.Vec2{}, false
	}
	return p.Pos, true
}

func (e monsterEnv) PlayerStats(id uint64) (monster.Stats, bool) {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	p, ok := e.w.players[id]
	if !ok {
		return monster.Stats{}, false
	}
	return p.Stats, true
}

func (e monsterEnv) SetPlayerStats(id uint64, stats monster.Stats) {
	e.w.mu.Lock()
	p, ok := e.w.players[id]
	if ok {
		p.Stats = stats
	}
	e.w.mu.Unlock()
}

func (e monsterEnv) MarkPlayerDirty(id uint64) {
	if e.w.dirty == nil {
		return
	}
	e.w.mu.Lock()
	p, ok := e.w.players[id]
	e.w.mu.Unlock()
	if ok {
		e.w.dirty.EnqueueRealtime(id, p.Pos.X, p.Pos.Y, p.Stats.HP, p.Stats.SP)
	}
	e.w.dirty.MarkDirty(id)
}

func (e monsterEnv) MoveMonster(id uint64, pos aoi.Vec2) {
	e.w.aoiWorld.MoveEntity(id, pos)
}

func (e monsterEnv) RemoveFromAOI(id uint64) {
	e.w.aoiWorld.RemoveEntity(id)
	e.w.monsters.Remove(id)
}

func (e monsterEnv) BroadcastAIState(id uint64, state monster.AIState) {
	e.w.aoiWorld.ForEachWatcher(id, func(watcherID uint64) {
		e.w.dispatch.SendAiStateEvent(watcherID, id, state)
	})
}

func (e monsterEnv) BroadcastMonsterStat(id uint64, stats monster.Stats) {
	e.w.aoiWorld.ForEachWatcher(id, func(watcherID uint64) {
		e.w.dispatch.SendStatEvent(watcherID, id, stats)
	})
}

func (e monsterEnv) BroadcastPlayerStat(id uint64, stats monster.Stats) {
	e.w.aoiWorld.ForEachWatcher(id, func(watcherID uint64) {
		e.w.dispatch.SendStatEvent(watcherID, id, stats)
	})
}

func (e monsterEnv) BroadcastCombat(attackerID, targetID uint64, damage int) {
	e.w.aoiWorld.ForEachWatcher(targetID, func(watcherID uint64) {
		e.w.dispatch.SendCombatEvent(watcherID, attackerID, targetID, damage)
	})
}
