package monster

import "time"

// CombatSystem resolves attacks both ways: monsters attacking players
// during their Attack AI state, and players attacking monsters via skill
// commands routed in from the field worker.
type CombatSystem struct {
	Tuning Tuning
}

// NewCombatSystem builds a CombatSystem with the default tuning policy.
func NewCombatSystem() *CombatSystem {
	return &CombatSystem{Tuning: DefaultTuning}
}

// Tick resolves one attack per monster currently in the Attack state whose
// cooldown has elapsed. broadcastCombat always fires for a resolved
// attack; broadcastPlayerStat only fires when the stat actually changed.
func (sys *CombatSystem) Tick(store *Store, env Environment, now time.Time) {
	for _, id := range store.Ids() {
		sys.tickOne(store, env, id, now)
	}
}

func (sys *CombatSystem) tickOne(store *Store, env Environment, id uint64, now time.Time) {
	store.mu.Lock()
	c, ok := store.components[id]
	if !ok || c.state != Attack {
		store.mu.Unlock()
		return
	}
	target := c.target
	attacker := c.stats
	last := c.lastAttack
	store.mu.Unlock()

	if last != 0 && now.Sub(time.Unix(0, last)) < sys.Tuning.AttackCooldown {
		return
	}

	defender, ok := env.PlayerStats(target)
	if !ok || !defender.Alive() {
		return
	}

	dmg := ResolveAttack(attacker, defender)
	defender.HP -= dmg
	if defender.HP < 0 {
		defender.HP = 0
	}

	store.mu.Lock()
	c.lastAttack = now.UnixNano()
	store.mu.Unlock()

	env.SetPlayerStats(target, defender)
	env.MarkPlayerDirty(target)
	env.BroadcastCombat(id, target, dmg)
	env.BroadcastPlayerStat(target, defender)
}

// ApplyPlayerAttack resolves a player's skill command landing on a
// monster: damage is computed, applied, and broadcast; if the monster
// dies its AOI entry is removed and its AI state flips to Dead by the
// caller driving the next AISystem tick (hp<=0 triggers the transition).
func (sys *CombatSystem) ApplyPlayerAttack(store *Store, env Environment, attacker Stats, targetMonsterID uint64) (damage int, dead bool, ok bool) {
	defender, found := store.Stats(targetMonsterID)
	if !found || !defender.Alive() {
		return 0, false, false
	}

	dmg := ResolveAttack(attacker, defender)
	newStats, found := store.ApplyDamage(targetMonsterID, dmg)
	if !found {
		return 0, false, false
	}

	env.BroadcastCombat(0, targetMonsterID, dmg)
	env.BroadcastMonsterStat(targetMonsterID, newStats)
	return dmg, !newStats.Alive(), true
}
