// Package monster implements the component-array ECS driving non-player
// entities inside a field: a fixed prefab table, per-monster component
// stores, and the AI/movement/combat systems that tick them.
package monster

import (
	"math"
	"time"

	"github.com/ironfield/server/aoi"
)

// Archetype distinguishes the three monster prefabs a template can be.
type Archetype uint8

const (
	ArchetypeBow Archetype = iota
	ArchetypeDoubleSword
	ArchetypeMagicWand
)

// Stats is the combat-relevant component shared by monsters and players.
type Stats struct {
	HP, MaxHP int
	SP, MaxSP int
	Atk, Def  int
}

// Alive reports whether hp is above zero.
func (s Stats) Alive() bool { return s.HP > 0 }

// AIState is the monster behaviour state machine's current state.
type AIState uint8

const (
	Idle AIState = iota
	Patrol
	Chase
	Attack
	Flee
	Dead
)

// Template is a static monster prefab, cycled through by field seeding.
type Template struct {
	Name      string
	Type      Archetype
	MaxHP     int
	MaxSP     int
	Atk, Def  int
}

// Templates is the fixed prefab table field seeding cycles through.
var Templates = []Template{
	{Name: "forest_archer", Type: ArchetypeBow, MaxHP: 40, MaxSP: 20, Atk: 8, Def: 2},
	{Name: "goblin_duelist", Type: ArchetypeDoubleSword, MaxHP: 60, MaxSP: 10, Atk: 10, Def: 4},
	{Name: "hex_caster", Type: ArchetypeMagicWand, MaxHP: 35, MaxSP: 40, Atk: 12, Def: 1},
}

// Tuning holds the AI/movement constants resolved as Open Questions where
// the retrieved original left them implicit.
type Tuning struct {
	BaseSpeed float64

	PatrolSpeedMul float64
	ChaseSpeedMul  float64
	FleeSpeedMul   float64

	ArcherSpeedMul float64
	MeleeSpeedMul  float64
	CasterSpeedMul float64

	AggroRange  float64
	AttackRange float64

	FleeHPRatio     float64
	RegenHPRatio    float64
	FleeDuration    time.Duration
	AttackCooldown  time.Duration
	PatrolRadius    float64
}

// DefaultTuning is the concrete policy recorded in SPEC_FULL.md §4.3.
var DefaultTuning = Tuning{
	BaseSpeed:      4.5,
	PatrolSpeedMul: 0.5,
	ChaseSpeedMul:  1.1,
	FleeSpeedMul:   0.7,
	ArcherSpeedMul: 1.0,
	MeleeSpeedMul:  1.1,
	CasterSpeedMul: 0.9,
	AggroRange:     12,
	AttackRange:    1.5,
	FleeHPRatio:    0.2,
	RegenHPRatio:   0.5,
	FleeDuration:   5 * time.Second,
	AttackCooldown: time.Second,
	PatrolRadius:   6,
}

func (t Tuning) archetypeSpeedMul(a Archetype) float64 {
	switch a {
	case ArchetypeBow:
		return t.ArcherSpeedMul
	case ArchetypeDoubleSword:
		return t.MeleeSpeedMul
	case ArchetypeMagicWand:
		return t.CasterSpeedMul
	default:
		return 1
	}
}

func (t Tuning) speedFor(state AIState, archetype Archetype) float64 {
	mul := t.archetypeSpeedMul(archetype)
	switch state {
	case Patrol:
		return t.BaseSpeed * t.PatrolSpeedMul * mul
	case Chase:
		return t.BaseSpeed * t.ChaseSpeedMul * mul
	case Flee:
		return t.BaseSpeed * t.FleeSpeedMul * mul
	default:
		return 0
	}
}

// ResolveAttack computes the damage an attack with the given stats deals,
// floored at 1 so combat always makes progress.
func ResolveAttack(attacker, defender Stats) int {
	dmg := attacker.Atk - defender.Def/2
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

func distance(a, b aoi.Vec2) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func normalize(dx, dy float64) (float64, float64) {
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return 0, 0
	}
	return dx / d, dy / d
}
