package server

import (
	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// Send writes p to a single session. A failed write kills the session, which
// is left for the sweep.
func (s *Server) Send(sess *session.Session, p *packet.Packet) {
	if sess.Dead() {
		return
	}
	s.packets.Sent(sess.IPAddr(), p)
	if err := sess.Write(p.Encode()); err != nil {
		s.logger.Debugf("write to %s failed: %v", sess, err)
	}
}

// Broadcast writes p to every live, logged-in session.
func (s *Server) Broadcast(p *packet.Packet) {
	data := p.Encode()
	for _, sess := range s.sessions {
		if !sess.LoggedIn || sess.Dead() {
			continue
		}
		s.packets.Sent(sess.IPAddr(), p)
		_ = sess.Write(data)
	}
}

// BroadcastRoom writes p to the logged-in members of room.
func (s *Server) BroadcastRoom(p *packet.Packet, room string) {
	if err := s.rooms.Broadcast(p, room); err != nil {
		s.logger.Warnf("broadcast to room %q failed: %v", room, err)
	}
}

// WallMessage sends a server notice to every logged-in moderator.
func (s *Server) WallMessage(message string) {
	p := packet.New(packet.WallMessage, packet.Blank, message)
	for _, sess := range s.sessions {
		if sess.LoggedIn && sess.IsMod() {
			s.Send(sess, p)
		}
	}
}

// ByName returns the live, logged-in session using name, ignoring case.
func (s *Server) ByName(name string) (*session.Session, bool) {
	folded := core.Fold(name)
	for _, sess := range s.sessions {
		if sess.LoggedIn && !sess.Dead() && core.Fold(sess.Name) == folded {
			return sess, true
		}
	}
	return nil, false
}

// LoggedIn returns every live, logged-in session in connection order.
func (s *Server) LoggedIn() []*session.Session {
	var sessions []*session.Session
	for _, sess := range s.sessions {
		if sess.LoggedIn && !sess.Dead() {
			sessions = append(sessions, sess)
		}
	}
	return sessions
}
