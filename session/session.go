package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ironfield/server/aoi"
	"github.com/ironfield/server/field"
	"github.com/ironfield/server/monster"
	"github.com/ironfield/server/netcodec"
)

// DefaultSpawnStats is the starting combat stat block a freshly logged
// in player gets. A real deployment would load this from the durable
// store on login; that lookup is outside this core's scope (see
// SPEC_FULL.md Non-goals).
var DefaultSpawnStats = monster.Stats{HP: 100, MaxHP: 100, SP: 50, MaxSP: 50, Atk: 10, Def: 5}

// Session is one connection's worth of state: its socket, which field
// (if any) it has joined, and the write lock guarding outbound envelopes
// so field-worker-driven sends and this session's own replies never
// interleave their bytes.
type Session struct {
	conn net.Conn
	log  *slog.Logger

	// connID identifies this TCP connection independently of the
	// client-supplied player id, so log lines and reconnect races can
	// be told apart even when the same player id logs in twice in
	// quick succession.
	connID uuid.UUID

	manager  *field.Manager
	registry *Registry
	bans     BanChecker

	writeMu sync.Mutex

	playerID uint64
	fieldID  uint64
	worker   *field.Worker
	loggedIn bool
}

// BanChecker reports whether a player id is banned from logging in.
// Session depends only on this interface so it can run without a
// banlist configured at all (a nil BanChecker admits everyone).
type BanChecker interface {
	Banned(uid uint64) bool
}

// New builds a session over an accepted connection. bans may be nil, in
// which case no player id is ever refused at login.
func New(conn net.Conn, manager *field.Manager, registry *Registry, bans BanChecker, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{conn: conn, manager: manager, registry: registry, bans: bans, log: log, connID: uuid.New()}
}

// Serve runs the session's read loop until the connection closes or a
// fatal protocol error occurs. The first envelope must be a login; every
// envelope after that is routed through the handler table.
func (s *Session) Serve() error {
	defer s.close()
	s.log.Debug("session accepted", "conn", s.connID)

	env, err := netcodec.ReadEnvelope(s.conn)
	if err != nil {
		return err
	}
	if env.Type != netcodec.MsgLogin {
		return errors.New("session: expected login as first message")
	}
	if err := s.handleLogin(env.Body); err != nil {
		return err
	}

	for {
		env, err := netcodec.ReadEnvelope(s.conn)
		if err != nil {
			return err
		}
		handler, ok := handlers[env.Type]
		if !ok {
			s.log.Warn("no handler for message type", "type", env.Type, "player", s.playerID)
			continue
		}
		if err := handler.Handle(env.Body, s); err != nil {
			s.log.Error("handler error", "type", env.Type, "player", s.playerID, "error", err)
		}
	}
}

func (s *Session) handleLogin(body []byte) error {
	login, err := netcodec.DecodeLogin(body)
	if err != nil {
		return err
	}
	s.playerID = login.PlayerID

	if s.bans != nil && s.bans.Banned(s.playerID) {
		ack := netcodec.LoginAckMsg{OK: false, Reason: "banned"}
		netcodec.WriteEnvelope(s.conn, netcodec.Envelope{Type: netcodec.MsgLoginAck, Body: ack.Encode()})
		return fmt.Errorf("session: player %d is banned", s.playerID)
	}

	s.loggedIn = true
	s.registry.Register(s.playerID, s)

	ack := netcodec.LoginAckMsg{OK: true}
	return netcodec.WriteEnvelope(s.conn, netcodec.Envelope{Type: netcodec.MsgLoginAck, Body: ack.Encode()})
}

func (s *Session) close() {
	if s.worker != nil {
		s.worker.Leave(s.playerID)
	}
	if s.loggedIn {
		s.registry.Unregister(s.playerID)
	}
	s.conn.Close()
}

func (s *Session) writeEnvelope(env netcodec.Envelope) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := netcodec.WriteEnvelope(s.conn, env); err != nil {
		s.log.Warn("write failed", "player", s.playerID, "error", err)
	}
}

// joinField enters the given field at a default spawn position, leaving
// whatever field this session was previously in.
func (s *Session) joinField(fieldID uint64, spawn aoi.Vec2) {
	if s.worker != nil {
		s.worker.Leave(s.playerID)
	}
	s.worker = s.manager.Field(fieldID)
	s.fieldID = fieldID
	s.worker.Join(s.playerID, spawn, DefaultSpawnStats)
}
