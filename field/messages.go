package field

import (
	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
)

// InboundKind discriminates the inbound message shapes a worker accepts.
type InboundKind uint8

const (
	InMove InboundKind = iota
	InSkillCmd
	InCustom
)

// Inbound is a single message routed from a session into a field worker's
// queue. Only one of the payload fields is meaningful, selected by Kind.
type Inbound struct {
	PlayerID uint64
	Kind     InboundKind

	// InMove: raw (unnormalized) direction the client is pressing.
	Dir aoi.Vec2

	// InSkillCmd: the monster (or, in principle, player) being targeted
	// and which skill is used.
	TargetID uint64
	SkillID  uint32

	// InCustom: an opaque application payload passed through unexamined.
	Custom []byte
}

// Dispatcher is the field worker's only way of reaching back out to
// connected sessions. It is implemented by the session package; field
// workers never import netcodec or session directly, keeping the
// simulation core ignorant of the wire format.
type Dispatcher interface {
	SendAoiEvent(playerID uint64, ev aoi.Event)
	SendCombatEvent(playerID uint64, attackerID, targetID uint64, damage int)
	SendStatEvent(playerID uint64, subjectID uint64, stats monster.Stats)
	SendAiStateEvent(playerID uint64, subjectID uint64, state monster.AIState)
}

// DirtyMarker is implemented by the storage package's System. Field
// workers mark a player dirty (for the durable store) and push a
// real-time snapshot (for the cache) whenever its persisted-relevant
// state — position beyond the debounce distance, hp/sp — changes. The
// two calls are independent: a real-time write is eager and cache-only,
// while MarkDirty schedules an eventual durable-store upsert.
type DirtyMarker interface {
	MarkDirty(uid uint64)
	EnqueueRealtime(uid uint64, x, z float64, hp, sp int)
}
