package field

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
)

const (
	// SeedFieldID is the only field that is pre-populated with monsters
	// on creation, matching the original's hardcoded seed field.
	SeedFieldID = 1000

	playerStep        = time.Second / 30
	playerMaxSubsteps  = 5
	monsterStep        = time.Second / 10
	monsterMaxSubsteps = 3

	defaultPlayerSpeed     = 4.5
	defaultPosDirtyDist    = 1.0
	defaultDirtyMinInterval = 500 * time.Millisecond

	defaultInboxCapacity = 1024
)

// WorkerConfig configures a single field worker.
type WorkerConfig struct {
	SectorSize       float64
	ViewRadius       int
	PlayerSpeed      float64
	PosDirtyDist     float64
	DirtyMinInterval time.Duration
	InboxCapacity    int
	MovementSeed     int64
	SeedMonsters     bool
}

// DefaultWorkerConfig mirrors the original's hardcoded field constants
// (sector size 15, view radius 2).
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		SectorSize:       15,
		ViewRadius:       2,
		PlayerSpeed:      defaultPlayerSpeed,
		PosDirtyDist:     defaultPosDirtyDist,
		DirtyMinInterval: defaultDirtyMinInterval,
		InboxCapacity:    defaultInboxCapacity,
	}
}

// Worker is a single field's simulation loop: a fixed-step accumulator
// tick for players and a slower one for monsters, a bounded inbound
// message queue, and the AOI/ECS state the field owns.
type Worker struct {
	ID uint64

	cfg WorkerConfig

	aoiWorld  *aoi.World
	monsters  *monster.Store
	aiSys     *monster.AISystem
	moveSys   *monster.MovementSystem
	combatSys *monster.CombatSystem
	env       monsterEnv

	dispatch Dispatcher
	dirty    DirtyMarker
	log      *slog.Logger

	mu      sync.Mutex
	players map[uint64]*Player

	inbox chan Inbound
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewWorker builds a field worker. If cfg.SeedMonsters is set (only true
// for SeedFieldID in practice) the field is immediately populated with
// the even-grid monster seed.
func NewWorker(id uint64, cfg WorkerConfig, dispatch Dispatcher, dirty DirtyMarker, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = defaultInboxCapacity
	}

	w := &Worker{
		ID:        id,
		cfg:       cfg,
		monsters:  monster.NewStore(),
		aiSys:     monster.NewAISystem(),
		moveSys:   monster.NewMovementSystem(cfg.MovementSeed),
		combatSys: monster.NewCombatSystem(),
		dispatch:  dispatch,
		dirty:     dirty,
		log:       log.With("field", id),
		players:   make(map[uint64]*Player),
		inbox:     make(chan Inbound, cfg.InboxCapacity),
		stop:      make(chan struct{}),
	}
	w.env = monsterEnv{w: w}
	w.aoiWorld = aoi.New(cfg.SectorSize, cfg.ViewRadius, func(to uint64, ev aoi.Event) {
		w.dispatch.SendAoiEvent(to, ev)
	})

	if cfg.SeedMonsters {
		w.spawnMonstersEvenGrid()
	}

	return w
}

// spawnMonstersEvenGrid seeds the field with 300 monsters on a 10x10 grid
// spread over a 500x500 area (three monsters per grid cell, one full grid
// pass per archetype), cycling through the template table with
// archetypes assigned in thirds, after SpawnMonstersEvenGrid from the
// original.
func (w *Worker) spawnMonstersEvenGrid() {
	const (
		gridDim  = 10
		area     = 500.0
		total    = 300
		spacing  = area / gridDim
	)
	nextID := uint64(SeedFieldID)
	for count := 0; count < total; count++ {
		cell := count % (gridDim * gridDim)
		row, col := cell/gridDim, cell%gridDim
		pos := aoi.Vec2{X: float64(col) * spacing, Y: float64(row) * spacing}
		templateID := 0
		switch {
		case count < total/3:
			templateID = 0 // Bow
		case count < 2*total/3:
			templateID = 1 // DoubleSword
		default:
			templateID = 2 // MagicWand
		}
		id := nextID
		nextID++
		w.monsters.Spawn(id, templateID, pos)
		w.aoiWorld.AddEntity(id, aoi.EntityMonster, pos)
	}
}

// Enqueue pushes an inbound player message onto the worker's bounded
// queue. It never blocks: a full queue is a resource-exhaustion
// condition and the message is dropped, logged, and reported back to the
// caller via the bool result so the session layer can apply its own
// backpressure policy.
func (w *Worker) Enqueue(msg Inbound) bool {
	select {
	case w.inbox <- msg:
		return true
	default:
		w.log.Warn("field inbox full, dropping message", "player", msg.PlayerID, "kind", msg.Kind)
		return false
	}
}

// Join adds a player to the field: the four-pass enter sequence (self,
// other players, monsters, then announce to other players) runs first,
// independently of the AOI subscribe/Snapshot mechanism that AddEntity
// triggers afterward. Both firing is intentional, inherited duplication
// from the original.
func (w *Worker) Join(playerID uint64, pos aoi.Vec2, stats monster.Stats) {
	w.mu.Lock()
	p := &Player{ID: playerID, Pos: pos, Stats: stats}
	w.players[playerID] = p
	others := make([]uint64, 0, len(w.players)-1)
	for id := range w.players {
		if id != playerID {
			others = append(others, id)
		}
	}
	w.mu.Unlock()

	selfView := aoi.EntityView{ID: playerID, Type: aoi.EntityPlayer, Pos: pos}
	w.dispatch.SendAoiEvent(playerID, aoi.Event{Kind: aoi.Enter, Entity: selfView})

	for _, otherID := range others {
		if otherPos, ok := w.aoiWorld.Position(otherID); ok {
			w.dispatch.SendAoiEvent(playerID, aoi.Event{Kind: aoi.Enter, Entity: aoi.EntityView{ID: otherID, Type: aoi.EntityPlayer, Pos: otherPos}})
		}
	}

	for _, monsterID := range w.monsters.Ids() {
		if mpos, ok := w.monsters.Position(monsterID); ok {
			w.dispatch.SendAoiEvent(playerID, aoi.Event{Kind: aoi.Enter, Entity: aoi.EntityView{ID: monsterID, Type: aoi.EntityMonster, Pos: mpos}})
		}
	}

	for _, otherID := range others {
		w.dispatch.SendAoiEvent(otherID, aoi.Event{Kind: aoi.Enter, Entity: selfView})
	}

	w.aoiWorld.AddEntity(playerID, aoi.EntityPlayer, pos)
}

// PlayerPosition returns a connected player's last known position.
func (w *Worker) PlayerPosition(playerID uint64) (aoi.Vec2, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[playerID]
	if !ok {
		return aoi.Vec2{}, false
	}
	return p.Pos, true
}

// Leave removes a player from the field.
func (w *Worker) Leave(playerID uint64) {
	w.aoiWorld.RemoveEntity(playerID)
	w.mu.Lock()
	delete(w.players, playerID)
	w.mu.Unlock()
}

// Run drives the worker's tick loop until ctx is cancelled or Stop is
// called. It owns all inbound message draining and simulation stepping;
// callers run it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	ticker := time.NewTicker(playerStep)
	defer ticker.Stop()

	lastTick := time.Now()
	var playerAcc, monsterAcc time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case msg := <-w.inbox:
			w.handleInbound(msg)
		case now := <-ticker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now
			playerAcc += elapsed
			monsterAcc += elapsed

			loops := 0
			for playerAcc >= playerStep && loops < playerMaxSubsteps {
				w.tickPlayers(playerStep.Seconds())
				playerAcc -= playerStep
				loops++
			}

			loops = 0
			for monsterAcc >= monsterStep && loops < monsterMaxSubsteps {
				w.tickMonsters(monsterStep.Seconds())
				monsterAcc -= monsterStep
				loops++
			}
		}
	}
}

// Stop requests the run loop to exit and waits for it to return.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *Worker) handleInbound(msg Inbound) {
	switch msg.Kind {
	case InMove:
		w.applyMoveInput(msg.PlayerID, msg.Dir)
	case InSkillCmd:
		w.applySkillCmd(msg.PlayerID, msg.TargetID)
	case InCustom:
		w.log.Debug("custom payload received", "player", msg.PlayerID, "bytes", len(msg.Custom))
	}
}

// applyMoveInput normalizes the client's direction vector and immediately
// steps the player by one player-tick's worth of movement, matching
// on_client_move_input's hardcoded speed of 4.5 units/s.
func (w *Worker) applyMoveInput(playerID uint64, dir aoi.Vec2) {
	d := math.Sqrt(dir.X*dir.X + dir.Y*dir.Y)
	if d == 0 {
		return
	}
	nx, ny := dir.X/d, dir.Y/d

	speed := w.cfg.PlayerSpeed
	if speed == 0 {
		speed = defaultPlayerSpeed
	}

	w.mu.Lock()
	p, ok := w.players[playerID]
	if !ok {
		w.mu.Unlock()
		return
	}
	newPos := aoi.Vec2{X: p.Pos.X + nx*speed*playerStep.Seconds(), Y: p.Pos.Y + ny*speed*playerStep.Seconds()}
	p.Pos = newPos
	w.mu.Unlock()

	w.aoiWorld.MoveEntity(playerID, newPos)
	w.markDirtyPosIfNeeded(playerID, newPos)
}

func (w *Worker) applySkillCmd(playerID, targetID uint64) {
	w.mu.Lock()
	p, ok := w.players[playerID]
	var attacker monster.Stats
	if ok {
		attacker = p.Stats
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	_, _, _ = w.combatSys.ApplyPlayerAttack(w.monsters, w.env, attacker, targetID)
}

// markDirtyPosIfNeeded debounces position-based dirty marking: a player
// is only re-marked once it has moved at least PosDirtyDist units since
// the last mark, and at least DirtyMinInterval has elapsed. A zero
// PosDirtyDist or DirtyMinInterval in the config selects the package
// default (1.0 units, 500ms).
func (w *Worker) markDirtyPosIfNeeded(playerID uint64, pos aoi.Vec2) {
	posDirtyDist := w.cfg.PosDirtyDist
	if posDirtyDist == 0 {
		posDirtyDist = defaultPosDirtyDist
	}
	minInterval := w.cfg.DirtyMinInterval
	if minInterval == 0 {
		minInterval = defaultDirtyMinInterval
	}

	w.mu.Lock()
	p, ok := w.players[playerID]
	if !ok {
		w.mu.Unlock()
		return
	}
	dx, dy := pos.X-p.lastDirtyPos.X, pos.Y-p.lastDirtyPos.Y
	distSq := dx*dx + dy*dy
	now := time.Now()
	shouldMark := !p.everMarked || (distSq >= posDirtyDist*posDirtyDist && now.Sub(p.lastDirtyMark) >= minInterval)
	stats := p.Stats
	if shouldMark {
		p.lastDirtyPos = pos
		p.lastDirtyMark = now
		p.everMarked = true
	}
	w.mu.Unlock()

	if shouldMark && w.dirty != nil {
		w.dirty.EnqueueRealtime(playerID, pos.X, pos.Y, stats.HP, stats.SP)
		w.dirty.MarkDirty(playerID)
	}
}

func (w *Worker) tickPlayers(dt float64) {
	// Player movement is applied directly off InMove messages rather
	// than integrated here; this step exists for future per-tick player
	// logic (regen, buffs) that needs the player accumulator's cadence.
	_ = dt
}

func (w *Worker) tickMonsters(dt float64) {
	now := time.Now()
	w.aiSys.Tick(w.monsters, w.env, now)
	w.moveSys.Tick(w.monsters, w.env, dt)
	w.combatSys.Tick(w.monsters, w.env, now)
}
