// Package server runs the chat server loop: it accepts connections, reads
// and dispatches packets, applies login outcomes, enforces the idle policy,
// and reaps dead sessions, all from a single goroutine.
package server

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
	coredebug "github.com/rvchat/rvserver/internal/core/debug"
	"github.com/rvchat/rvserver/internal/moderation"
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/room"
	"github.com/rvchat/rvserver/internal/session"
)

// How long shutdown waits for session writers to drain.
const shutdownFlushTimeout = 5 * time.Second

// ChatLog receives one line per handled packet.
type ChatLog interface {
	Append(line string)
	Flush() error
}

// Server owns every session and room. None of its methods are safe for
// concurrent use; they are all called from the goroutine running Run.
type Server struct {
	cfg     *core.Config
	logger  logrus.FieldLogger
	chatLog ChatLog
	auth    AuthService
	source  ConnSource
	packets *coredebug.PacketLogger

	sessions []*session.Session
	byID     map[session.ID]*session.Session
	nextID   session.ID

	rooms    *room.Directory
	registry *Registry
	env      *Env
	opts     session.Options
}

// New returns a Server taking connections from source.
func New(cfg *core.Config, source ConnSource, authService AuthService, chatLog ChatLog, logger logrus.FieldLogger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		chatLog:  chatLog,
		auth:     authService,
		source:   source,
		packets:  coredebug.NewPacketLogger(cfg, logger),
		byID:     make(map[session.ID]*session.Session),
		registry: NewRegistry(),
		opts: session.Options{
			ReadBufferSize: cfg.ReadBufferSize,
			WriteQueueSize: cfg.WriteQueueSize,
			WriteTimeout:   cfg.WriteTimeout,
			FloodRate:      cfg.Flood.MessagesPerSecond,
			FloodBurst:     cfg.Flood.Burst,
		},
	}

	s.rooms = room.NewDirectory(cfg.DefaultRoom, cfg.MaxRoomNameLength, s.lookup, logger)
	for _, name := range cfg.AdditionalRooms {
		if err := s.rooms.Create(name); err != nil {
			logger.Warnf("skipping configured room %q: %v", name, err)
		}
	}

	s.env = &Env{
		Broadcaster: s,
		Sessions:    s,
		Rooms:       s.rooms,
		Auth:        authService,
		TimedBans:   moderation.NewTimedList(),
		TimedMutes:  moderation.NewTimedList(),
		Logger:      logger,
	}
	return s
}

// Run ticks until ctx is cancelled, then disconnects everyone.
func (s *Server) Run(ctx context.Context) {
	s.logger.Infof("chat server running with default room %s", s.rooms.Default())

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		default:
		}

		start := time.Now()
		s.Tick(start)

		if elapsed := time.Since(start); s.cfg.LagWarningThreshold > 0 && elapsed > s.cfg.LagWarningThreshold {
			s.logger.Warnf("server loop took %s to execute", elapsed)
		}

		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.TickInterval):
		}
	}
}

// Tick runs one iteration of the server loop.
func (s *Server) Tick(now time.Time) {
	s.env.Now = now

	s.acceptConnections(now)
	s.applyCompletions()

	// Sessions accepted during this pass wait for the next one.
	for _, sess := range s.sessions {
		s.update(sess, now)
	}

	s.sweep()
	s.source.SetActive(len(s.sessions))

	if err := s.chatLog.Flush(); err != nil {
		s.logger.Warnf("failed to flush chat log: %v", err)
	}
}

func (s *Server) acceptConnections(now time.Time) {
	for {
		conn, ok := s.source.Poll()
		if !ok {
			return
		}

		s.nextID++
		sess := session.New(s.nextID, conn, s.opts, now)
		s.sessions = append(s.sessions, sess)
		s.byID[sess.ID()] = sess

		s.logger.Infof("accepted connection from %s:%s (session %d)", sess.IPAddr(), sess.Port(), sess.ID())
	}
}

// applyCompletions copies finished login checks onto their sessions. Results
// for sessions that have since been swept are dropped.
func (s *Server) applyCompletions() {
	for _, result := range s.auth.Completions() {
		sess, ok := s.byID[result.SessionID]
		if !ok || sess.LoginState != session.Checking {
			s.logger.Debugf("discarding login result for departed session %d (%s)", result.SessionID, result.Username)
			continue
		}
		sess.LoginState = result.State
		if result.State == session.Success {
			sess.Level = result.Level
			sess.Prefs = result.Prefs
		}
	}
}

func (s *Server) update(sess *session.Session, now time.Time) {
	defer s.recoverSession(sess)

	if !sess.LoggedIn {
		// Nothing is read until the account service has answered.
		if sess.LoginState == session.Checking {
			return
		}
		if sess.LoginState.Terminal() {
			s.completeLogin(sess)
		}
	}

	if sess.Dead() {
		return
	}

	data, err := sess.Poll()
	if data != "" {
		s.handleInput(sess, data, now)
	}
	if err != nil {
		switch {
		case errors.Is(err, session.ErrOverflow):
			s.logger.Warnf("dropping %s: sent too much data without a newline", sess)
		default:
			s.logger.Debugf("connection to %s lost: %v", sess, err)
		}
	}

	if sess.LoggedIn && !sess.Dead() {
		s.checkTimedMute(sess, now)
		s.checkIdle(sess, now)
	}
}

// recoverSession is the failsafe that catches any panic while processing a
// session, so that only the offending session is dropped.
func (s *Server) recoverSession(sess *session.Session) {
	if err := recover(); err != nil {
		s.logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			sess.IPAddr(), err, debug.Stack())
		sess.Kill()
	}
}

func (s *Server) handleInput(sess *session.Session, data string, now time.Time) {
	packets, err := packet.DecodeAll(data)
	for _, p := range packets {
		s.handlePacket(sess, p, now)
		if sess.Dead() {
			return
		}
	}
	if err != nil {
		s.logger.Warnf("invalid packet from %s: %v", sess, err)
		sess.Kill()
	}
}

func (s *Server) handlePacket(sess *session.Session, p *packet.Packet, now time.Time) {
	s.packets.Received(sess.IPAddr(), p)

	// Captured before the handler runs, since a login renames the session.
	prefix := sess.String()

	// Changing the away message is not a return from being away, but an
	// idle user going away has still come back from idle.
	wasAway := sess.Away
	changingAway := p.Code == packet.ClientAway
	if sess.LoggedIn && (sess.Idle() || (sess.Away && !changingAway)) {
		s.Broadcast(packet.New(packet.ClientBack, sess.Name, packet.Blank))
	}
	sess.Touch(now)
	if changingAway {
		sess.Away = wasAway
	}

	if !s.registry.Dispatch(s.env, sess, p) {
		return
	}

	logged := *p
	if logged.Code == packet.UserJoin {
		logged.Message = "[censored]"
	}
	s.chatLog.Append(prefix + "\t" + logged.String())
}

// sweep removes every dead session that is not waiting on the account
// service.
func (s *Server) sweep() {
	var dead []*session.Session
	live := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Dead() && sess.LoginState != session.Checking {
			dead = append(dead, sess)
			continue
		}
		live = append(live, sess)
	}
	s.sessions = live

	for _, sess := range dead {
		s.remove(sess)
	}
}

func (s *Server) remove(sess *session.Session) {
	delete(s.byID, sess.ID())
	s.rooms.Leave(sess.ID())

	if sess.LoggedIn {
		sess.LoggedIn = false
		s.Broadcast(packet.New(packet.UserPart, sess.Name, packet.Blank))
		s.auth.SavePrefs(sess)
	}
	sess.Kill()

	s.logger.Infof("disconnected client %s", sess)
}

func (s *Server) shutdown() {
	s.logger.Infof("shutting down (disconnecting %d sessions)", len(s.sessions))

	sessions := s.sessions
	for _, sess := range sessions {
		s.remove(sess)
	}
	s.sessions = nil

	if err := s.chatLog.Flush(); err != nil {
		s.logger.Warnf("failed to flush chat log: %v", err)
	}

	// Give the writers a bounded chance to deliver the departure notices
	// queued above before the process exits.
	deadline := time.NewTimer(shutdownFlushTimeout)
	defer deadline.Stop()
	for i, sess := range sessions {
		select {
		case <-sess.Finished():
		case <-deadline.C:
			s.logger.Warnf("gave up waiting on %d sessions to flush", len(sessions)-i)
			return
		}
	}
}

func (s *Server) lookup(id session.ID) (*session.Session, bool) {
	sess, ok := s.byID[id]
	return sess, ok
}

// Session returns the live session with the given ID.
func (s *Server) Session(id session.ID) (*session.Session, bool) {
	return s.lookup(id)
}

// Rooms exposes the room directory.
func (s *Server) Rooms() *room.Directory {
	return s.rooms
}
