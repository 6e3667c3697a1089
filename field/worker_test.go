package field

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	aoi    map[uint64][]aoi.Event
	combat map[uint64]int
	stat   map[uint64]int
	ai     map[uint64]int
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		aoi:    make(map[uint64][]aoi.Event),
		combat: make(map[uint64]int),
		stat:   make(map[uint64]int),
		ai:     make(map[uint64]int),
	}
}

func (d *fakeDispatcher) SendAoiEvent(playerID uint64, ev aoi.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aoi[playerID] = append(d.aoi[playerID], ev)
}

func (d *fakeDispatcher) SendCombatEvent(playerID uint64, attackerID, targetID uint64, damage int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.combat[playerID]++
}

func (d *fakeDispatcher) SendStatEvent(playerID uint64, subjectID uint64, stats monster.Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stat[playerID]++
}

func (d *fakeDispatcher) SendAiStateEvent(playerID uint64, subjectID uint64, state monster.AIState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ai[playerID]++
}

func (d *fakeDispatcher) countKind(playerID uint64, kind aoi.EventKind, subject uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ev := range d.aoi[playerID] {
		if ev.Kind == kind && ev.Entity.ID == subject {
			n++
		}
	}
	return n
}

type fakeDirty struct {
	mu    sync.Mutex
	marks map[uint64]int
	rt    map[uint64]int
}

func newFakeDirty() *fakeDirty {
	return &fakeDirty{marks: make(map[uint64]int), rt: make(map[uint64]int)}
}

func (f *fakeDirty) MarkDirty(uid uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[uid]++
}

func (f *fakeDirty) EnqueueRealtime(uid uint64, x, z float64, hp, sp int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rt[uid]++
}

func (f *fakeDirty) count(uid uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[uid]
}

func TestJoinSequenceEnterPasses(t *testing.T) {
	disp := newFakeDispatcher()
	w := NewWorker(1, DefaultWorkerConfig(), disp, newFakeDirty(), nil)

	w.Join(1, aoi.Vec2{X: 0, Y: 0}, monster.Stats{HP: 100, MaxHP: 100})
	if disp.countKind(1, aoi.Enter, 1) != 1 {
		t.Fatalf("joining player should receive a self-Enter")
	}

	w.Join(2, aoi.Vec2{X: 1, Y: 1}, monster.Stats{HP: 100, MaxHP: 100})
	if disp.countKind(2, aoi.Enter, 1) < 1 {
		t.Fatalf("player 2 should be told about existing player 1 on join")
	}
	if disp.countKind(1, aoi.Enter, 2) < 1 {
		t.Fatalf("existing player 1 should be told about new player 2")
	}
}

func TestSpawnMonstersEvenGridSeedsThreeHundred(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.SeedMonsters = true
	disp := newFakeDispatcher()
	w := NewWorker(SeedFieldID, cfg, disp, newFakeDirty(), nil)

	ids := w.monsters.Ids()
	if len(ids) != 300 {
		t.Fatalf("expected 300 seeded monsters, got %d", len(ids))
	}
}

func TestNonSeedFieldStartsEmpty(t *testing.T) {
	cfg := DefaultWorkerConfig()
	disp := newFakeDispatcher()
	w := NewWorker(42, cfg, disp, newFakeDirty(), nil)

	if len(w.monsters.Ids()) != 0 {
		t.Fatalf("non-seed field should start with no monsters")
	}
}

func TestEnqueueDropsWhenInboxFull(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.InboxCapacity = 1
	disp := newFakeDispatcher()
	w := NewWorker(1, cfg, disp, newFakeDirty(), nil)

	if !w.Enqueue(Inbound{PlayerID: 1, Kind: InMove}) {
		t.Fatalf("first enqueue into an empty bounded queue should succeed")
	}
	if w.Enqueue(Inbound{PlayerID: 1, Kind: InMove}) {
		t.Fatalf("enqueue into a full queue should report failure rather than block")
	}
}

func TestMarkDirtyPosDebounces(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.PosDirtyDist = 1.0
	cfg.DirtyMinInterval = time.Nanosecond // zero would select the 500ms default
	disp := newFakeDispatcher()
	dirty := newFakeDirty()
	w := NewWorker(1, cfg, disp, dirty, nil)
	w.Join(1, aoi.Vec2{X: 0, Y: 0}, monster.Stats{HP: 100, MaxHP: 100})

	w.markDirtyPosIfNeeded(1, aoi.Vec2{X: 0.1, Y: 0})
	if dirty.count(1) != 1 {
		t.Fatalf("first mark should always fire, got %d", dirty.count(1))
	}

	w.markDirtyPosIfNeeded(1, aoi.Vec2{X: 0.2, Y: 0})
	if dirty.count(1) != 1 {
		t.Fatalf("sub-threshold movement must not re-mark dirty, got %d marks", dirty.count(1))
	}

	w.markDirtyPosIfNeeded(1, aoi.Vec2{X: 2, Y: 0})
	if dirty.count(1) != 2 {
		t.Fatalf("movement past the threshold should re-mark dirty, got %d marks", dirty.count(1))
	}
}

func TestApplySkillCmdDamagesMonster(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.SeedMonsters = true
	disp := newFakeDispatcher()
	w := NewWorker(SeedFieldID, cfg, disp, newFakeDirty(), nil)

	monsterID := w.monsters.Ids()[0]
	w.Join(1, aoi.Vec2{X: 0, Y: 0}, monster.Stats{HP: 100, MaxHP: 100, Atk: 50})

	before, _ := w.monsters.Stats(monsterID)
	w.applySkillCmd(1, monsterID)
	after, _ := w.monsters.Stats(monsterID)

	if after.HP >= before.HP {
		t.Fatalf("expected monster hp to drop, before=%d after=%d", before.HP, after.HP)
	}
}

func TestRunProcessesQueuedMove(t *testing.T) {
	cfg := DefaultWorkerConfig()
	disp := newFakeDispatcher()
	w := NewWorker(1, cfg, disp, newFakeDirty(), nil)
	w.Join(1, aoi.Vec2{X: 0, Y: 0}, monster.Stats{HP: 100, MaxHP: 100})

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
	}()

	w.Enqueue(Inbound{PlayerID: 1, Kind: InMove, Dir: aoi.Vec2{X: 1, Y: 0}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		moved := w.players[1].Pos.X > 0
		w.mu.Unlock()
		if moved {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected queued move input to be applied by the run loop")
}
