// Package session implements per-connection session state: the login
// handshake, a dispatch table routing inbound envelopes to field
// workers, and a registry that lets field workers reach back out to any
// connected player regardless of which goroutine is driving that
// player's socket.
package session

import (
	"sync"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/monster"
	"github.com/ironfield/server/netcodec"
)

// Registry implements field.Dispatcher by looking up the live Session
// for a target player id and writing an encoded envelope to it. A
// lookup miss (player disconnected between the event being raised and
// delivered) is silently dropped, matching the original's behaviour of
// looking up a session and no-op'ing if it's gone.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

// Register associates a playerID with its live session.
func (r *Registry) Register(playerID uint64, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[playerID] = s
}

// Unregister removes a playerID, e.g. on disconnect.
func (r *Registry) Unregister(playerID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
}

func (r *Registry) get(playerID uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[playerID]
	return s, ok
}

// SendAoiEvent implements field.Dispatcher.
func (r *Registry) SendAoiEvent(to uint64, ev aoi.Event) {
	s, ok := r.get(to)
	if !ok {
		return
	}
	msg := netcodec.FieldCmdMsg{
		Kind:       uint8(ev.Kind),
		EntityID:   ev.Entity.ID,
		EntityType: uint8(ev.Entity.Type),
		X:          ev.Entity.Pos.X,
		Y:          ev.Entity.Pos.Y,
	}
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgFieldCmd, Body: msg.Encode()})
}

// SendCombatEvent implements field.Dispatcher.
func (r *Registry) SendCombatEvent(to uint64, attackerID, targetID uint64, damage int) {
	s, ok := r.get(to)
	if !ok {
		return
	}
	msg := netcodec.CombatEventMsg{AttackerID: attackerID, TargetID: targetID, Damage: int32(damage)}
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgCombatEvent, Body: msg.Encode()})
}

// SendStatEvent implements field.Dispatcher.
func (r *Registry) SendStatEvent(to uint64, subjectID uint64, stats monster.Stats) {
	s, ok := r.get(to)
	if !ok {
		return
	}
	msg := netcodec.StatEventMsg{
		SubjectID: subjectID,
		HP:        int32(stats.HP),
		MaxHP:     int32(stats.MaxHP),
		SP:        int32(stats.SP),
		MaxSP:     int32(stats.MaxSP),
	}
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgStatEvent, Body: msg.Encode()})
}

// SendAiStateEvent implements field.Dispatcher.
func (r *Registry) SendAiStateEvent(to uint64, subjectID uint64, state monster.AIState) {
	s, ok := r.get(to)
	if !ok {
		return
	}
	msg := netcodec.AiStateEventMsg{SubjectID: subjectID, State: uint8(state)}
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgAiStateEvent, Body: msg.Encode()})
}
