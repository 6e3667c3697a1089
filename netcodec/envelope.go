// Package netcodec implements the wire envelope every session connection
// speaks: a 4-byte big-endian length prefix, a 1-byte message-type tag,
// and a binary body encoded with encoding/binary in the same
// reader/writer idiom the rest of this codebase uses for its protocol
// layers. There is no schema compiler behind this — see DESIGN.md for why
// that's a deliberate choice rather than a shortcut.
package netcodec

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxBodySize bounds a single envelope's body, guarding against a
// corrupt or hostile length prefix forcing an unbounded allocation.
const MaxBodySize = 1 << 20

// MsgType discriminates the body of an Envelope.
type MsgType uint8

const (
	MsgLogin MsgType = iota
	MsgLoginAck
	MsgPing
	MsgEnterField
	MsgEnterFieldAck
	MsgMoveInput
	MsgSkillCmd
	MsgSkillAck
	MsgFieldCmd
	MsgCombatEvent
	MsgStatEvent
	MsgAiStateEvent
	MsgCustom
)

// ErrBodyTooLarge is returned by ReadEnvelope when the declared length
// exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("netcodec: envelope body exceeds maximum size")

// Envelope is one length-prefixed wire message.
type Envelope struct {
	Type MsgType
	Body []byte
}

// WriteEnvelope writes env to w as [len(type+body) uint32][type byte][body].
func WriteEnvelope(w io.Writer, env Envelope) error {
	length := uint32(1 + len(env.Body))
	var header [5]byte
	binary.BigEndian.PutUint32(header[0:4], length)
	header[4] = byte(env.Type)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(env.Body) == 0 {
		return nil
	}
	_, err := w.Write(env.Body)
	return err
}

// ReadEnvelope reads one length-prefixed envelope from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return Envelope{}, errors.New("netcodec: envelope missing type byte")
	}
	if length-1 > MaxBodySize {
		return Envelope{}, ErrBodyTooLarge
	}

	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return Envelope{}, err
	}

	bodyLen := length - 1
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return Envelope{}, err
		}
	}
	return Envelope{Type: MsgType(typeBuf[0]), Body: body}, nil
}
