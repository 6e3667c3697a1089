package netcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// writer is a small helper around bytes.Buffer matching the
// reader/writer-struct idiom used elsewhere in this codebase's protocol
// layer for binary field encoding.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) f64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}
func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}
func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}
func (w *writer) bytes() []byte { return w.buf.Bytes() }

type reader struct {
	b   []byte
	pos int
}

var errShortBody = errors.New("netcodec: message body too short")

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.b) {
		return 0, errShortBody
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, errShortBody
	}
	v := binary.BigEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.b) {
		return 0, errShortBody
	}
	v := binary.BigEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.b) {
		return "", errShortBody
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// LoginMsg is the client's initial handshake request.
type LoginMsg struct {
	PlayerID uint64
	Token    string
}

func (m LoginMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.PlayerID)
	w.str(m.Token)
	return w.bytes()
}

func DecodeLogin(b []byte) (LoginMsg, error) {
	r := &reader{b: b}
	id, err := r.u64()
	if err != nil {
		return LoginMsg{}, err
	}
	tok, err := r.str()
	if err != nil {
		return LoginMsg{}, err
	}
	return LoginMsg{PlayerID: id, Token: tok}, nil
}

// LoginAckMsg answers a login attempt.
type LoginAckMsg struct {
	OK     bool
	Reason string
}

func (m LoginAckMsg) Encode() []byte {
	w := &writer{}
	w.bool(m.OK)
	w.str(m.Reason)
	return w.bytes()
}

func DecodeLoginAck(b []byte) (LoginAckMsg, error) {
	r := &reader{b: b}
	ok, err := r.boolean()
	if err != nil {
		return LoginAckMsg{}, err
	}
	reason, err := r.str()
	if err != nil {
		return LoginAckMsg{}, err
	}
	return LoginAckMsg{OK: ok, Reason: reason}, nil
}

// EnterFieldMsg requests joining a field.
type EnterFieldMsg struct {
	FieldID uint64
}

func (m EnterFieldMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.FieldID)
	return w.bytes()
}

func DecodeEnterField(b []byte) (EnterFieldMsg, error) {
	r := &reader{b: b}
	id, err := r.u64()
	return EnterFieldMsg{FieldID: id}, err
}

// EnterFieldAckMsg answers an EnterFieldMsg request.
type EnterFieldAckMsg struct {
	FieldID uint64
	OK      bool
}

func (m EnterFieldAckMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.FieldID)
	w.bool(m.OK)
	return w.bytes()
}

func DecodeEnterFieldAck(b []byte) (EnterFieldAckMsg, error) {
	r := &reader{b: b}
	id, err := r.u64()
	if err != nil {
		return EnterFieldAckMsg{}, err
	}
	ok, err := r.boolean()
	if err != nil {
		return EnterFieldAckMsg{}, err
	}
	return EnterFieldAckMsg{FieldID: id, OK: ok}, nil
}

// SkillAckMsg answers a SkillCmdMsg request.
type SkillAckMsg struct {
	OK bool
}

func (m SkillAckMsg) Encode() []byte {
	w := &writer{}
	w.bool(m.OK)
	return w.bytes()
}

func DecodeSkillAck(b []byte) (SkillAckMsg, error) {
	r := &reader{b: b}
	ok, err := r.boolean()
	return SkillAckMsg{OK: ok}, err
}

// MoveInputMsg carries the client's raw (unnormalized) move direction.
type MoveInputMsg struct {
	DirX, DirY float64
}

func (m MoveInputMsg) Encode() []byte {
	w := &writer{}
	w.f64(m.DirX)
	w.f64(m.DirY)
	return w.bytes()
}

func DecodeMoveInput(b []byte) (MoveInputMsg, error) {
	r := &reader{b: b}
	x, err := r.f64()
	if err != nil {
		return MoveInputMsg{}, err
	}
	y, err := r.f64()
	if err != nil {
		return MoveInputMsg{}, err
	}
	return MoveInputMsg{DirX: x, DirY: y}, nil
}

// SkillCmdMsg is a player using a skill on a target entity.
type SkillCmdMsg struct {
	TargetID uint64
	SkillID  uint32
}

func (m SkillCmdMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.TargetID)
	w.u32(m.SkillID)
	return w.bytes()
}

func DecodeSkillCmd(b []byte) (SkillCmdMsg, error) {
	r := &reader{b: b}
	target, err := r.u64()
	if err != nil {
		return SkillCmdMsg{}, err
	}
	skill, err := r.u32()
	if err != nil {
		return SkillCmdMsg{}, err
	}
	return SkillCmdMsg{TargetID: target, SkillID: skill}, nil
}

// FieldCmdMsg carries one AOI event (Enter/Leave/Move/Snapshot) over the
// wire, with an explicit entity-type tag for the client's benefit even
// though the server itself derives type purely from id range.
type FieldCmdMsg struct {
	Kind       uint8
	EntityID   uint64
	EntityType uint8
	X, Y       float64
}

func (m FieldCmdMsg) Encode() []byte {
	w := &writer{}
	w.u8(m.Kind)
	w.u64(m.EntityID)
	w.u8(m.EntityType)
	w.f64(m.X)
	w.f64(m.Y)
	return w.bytes()
}

func DecodeFieldCmd(b []byte) (FieldCmdMsg, error) {
	r := &reader{b: b}
	kind, err := r.u8()
	if err != nil {
		return FieldCmdMsg{}, err
	}
	id, err := r.u64()
	if err != nil {
		return FieldCmdMsg{}, err
	}
	typ, err := r.u8()
	if err != nil {
		return FieldCmdMsg{}, err
	}
	x, err := r.f64()
	if err != nil {
		return FieldCmdMsg{}, err
	}
	y, err := r.f64()
	if err != nil {
		return FieldCmdMsg{}, err
	}
	return FieldCmdMsg{Kind: kind, EntityID: id, EntityType: typ, X: x, Y: y}, nil
}

// CombatEventMsg reports a resolved attack.
type CombatEventMsg struct {
	AttackerID, TargetID uint64
	Damage               int32
}

func (m CombatEventMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.AttackerID)
	w.u64(m.TargetID)
	w.i32(m.Damage)
	return w.bytes()
}

func DecodeCombatEvent(b []byte) (CombatEventMsg, error) {
	r := &reader{b: b}
	attacker, err := r.u64()
	if err != nil {
		return CombatEventMsg{}, err
	}
	target, err := r.u64()
	if err != nil {
		return CombatEventMsg{}, err
	}
	dmg, err := r.i32()
	if err != nil {
		return CombatEventMsg{}, err
	}
	return CombatEventMsg{AttackerID: attacker, TargetID: target, Damage: dmg}, nil
}

// StatEventMsg reports a subject's current hp/sp.
type StatEventMsg struct {
	SubjectID          uint64
	HP, MaxHP, SP, MaxSP int32
}

func (m StatEventMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.SubjectID)
	w.i32(m.HP)
	w.i32(m.MaxHP)
	w.i32(m.SP)
	w.i32(m.MaxSP)
	return w.bytes()
}

func DecodeStatEvent(b []byte) (StatEventMsg, error) {
	r := &reader{b: b}
	id, err := r.u64()
	if err != nil {
		return StatEventMsg{}, err
	}
	hp, err := r.i32()
	if err != nil {
		return StatEventMsg{}, err
	}
	maxHP, err := r.i32()
	if err != nil {
		return StatEventMsg{}, err
	}
	sp, err := r.i32()
	if err != nil {
		return StatEventMsg{}, err
	}
	maxSP, err := r.i32()
	if err != nil {
		return StatEventMsg{}, err
	}
	return StatEventMsg{SubjectID: id, HP: hp, MaxHP: maxHP, SP: sp, MaxSP: maxSP}, nil
}

// AiStateEventMsg reports a monster's AI state transition.
type AiStateEventMsg struct {
	SubjectID uint64
	State     uint8
}

func (m AiStateEventMsg) Encode() []byte {
	w := &writer{}
	w.u64(m.SubjectID)
	w.u8(m.State)
	return w.bytes()
}

func DecodeAiStateEvent(b []byte) (AiStateEventMsg, error) {
	r := &reader{b: b}
	id, err := r.u64()
	if err != nil {
		return AiStateEventMsg{}, err
	}
	state, err := r.u8()
	if err != nil {
		return AiStateEventMsg{}, err
	}
	return AiStateEventMsg{SubjectID: id, State: state}, nil
}
