package session

import (
	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/field"
	"github.com/ironfield/server/netcodec"
)

// Handler processes one decoded message body against the session that
// received it. Each wire message type gets its own Handler, matching the
// one-struct-per-packet-type pattern used throughout this codebase's
// session layer.
type Handler interface {
	Handle(body []byte, s *Session) error
}

var handlers = map[netcodec.MsgType]Handler{
	netcodec.MsgPing:       &PingHandler{},
	netcodec.MsgEnterField: &EnterFieldHandler{},
	netcodec.MsgSkillCmd:   &SkillCmdHandler{},
	netcodec.MsgCustom:     &CustomHandler{},
	netcodec.MsgMoveInput:  &MoveHandler{},
}

// PingHandler answers a keepalive with the same message type.
type PingHandler struct{}

func (h *PingHandler) Handle(_ []byte, s *Session) error {
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgPing})
	return nil
}

// EnterFieldHandler moves a session into the requested field. The ack is
// written before the join, so the client has it before any of the field
// events the join produces.
type EnterFieldHandler struct{}

func (h *EnterFieldHandler) Handle(body []byte, s *Session) error {
	msg, err := netcodec.DecodeEnterField(body)
	if err != nil {
		return err
	}
	ack := netcodec.EnterFieldAckMsg{FieldID: msg.FieldID, OK: true}
	s.writeEnvelope(netcodec.Envelope{Type: netcodec.MsgEnterFieldAck, Body: ack.Encode()})
	s.joinField(msg.FieldID, aoi.Vec2{X: 0, Y: 0})
	return nil
}

// MoveHandler forwards a client's move input to its current field
// worker's bounded inbox.
type MoveHandler struct{}

func (h *MoveHandler) Handle(body []byte, s *Session) error {
	msg, err := netcodec.DecodeMoveInput(body)
	if err != nil {
		return err
	}
	if s.worker == nil {
		return nil
	}
	s.worker.Enqueue(field.Inbound{
		PlayerID: s.playerID,
		Kind:     field.InMove,
		Dir:      aoi.Vec2{X: msg.DirX, Y: msg.DirY},
	})
	return nil
}

// SkillCmdHandler forwards a skill use to the session's current field
// worker's bounded inbox.
type SkillCmdHandler struct{}

func (h *SkillCmdHandler) Handle(body []byte, s *Session) error {
	msg, err := netcodec.DecodeSkillCmd(body)
	if err != nil {
		return err
	}
	if s.worker == nil {
		return nil
	}
	s.worker.Enqueue(field.Inbound{
		PlayerID: s.playerID,
		Kind:     field.InSkillCmd,
		TargetID: msg.TargetID,
		SkillID:  msg.SkillID,
	})
	return nil
}

// CustomHandler forwards an opaque application payload through
// unexamined, matching the original's generic Custom message path.
type CustomHandler struct{}

func (h *CustomHandler) Handle(body []byte, s *Session) error {
	if s.worker == nil {
		return nil
	}
	s.worker.Enqueue(field.Inbound{
		PlayerID: s.playerID,
		Kind:     field.InCustom,
		Custom:   body,
	})
	return nil
}
