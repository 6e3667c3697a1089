package field

import (
	"time"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
)

// Player is a field worker's view of one connected player: position,
// combat stats, and the bookkeeping needed to debounce dirty-marking.
type Player struct {
	ID    uint64
	Pos   aoi.Vec2
	Stats monster.Stats

	lastDirtyPos  aoi.Vec2
	lastDirtyMark time.Time
	everMarked    bool
}

// MonsterIDFloor is the id boundary at and above which an entity id is a
// monster rather than a player, matching the original's id-range
// discrimination scheme.
const MonsterIDFloor = 1000

// EntityTypeOf derives an aoi.EntityType purely from an id range.
func EntityTypeOf(id uint64) aoi.EntityType {
	if id >= MonsterIDFloor {
		return aoi.EntityMonster
	}
	return aoi.EntityPlayer
}
