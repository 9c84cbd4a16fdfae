package server

import (
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// handleLogin starts a login for the name in the actor field using the
// password in the message field.
func handleLogin(env *Env, s *session.Session, p *packet.Packet) bool {
	if s.LoggedIn || s.LoginState == session.Checking {
		return false
	}

	name := p.Actor
	if name == "" || name == packet.Blank {
		env.Send(s, packet.Status(packet.AccessDenied))
		s.Kill()
		return true
	}

	if env.TimedBans.Has(name, env.Now) {
		env.Logger.Infof("refusing login from %s: %s is temporarily banned", s.IPAddr(), name)
		env.Send(s, packet.Status(packet.AccessDenied))
		s.Kill()
		return true
	}

	if holder, ok := env.Sessions.ByName(name); ok {
		if holder.IPAddr() != s.IPAddr() {
			env.Logger.Infof("refusing login from %s: %s is already logged in", s.IPAddr(), name)
			env.Send(s, packet.Status(packet.AccessDenied))
			s.Kill()
			return true
		}
		// Most likely the same user reconnecting before the old socket timed out.
		env.Logger.Infof("replacing stale session %s", holder)
		holder.Kill()
	}

	s.Name = name
	env.Auth.Login(s, p.Message)
	return true
}

// handleLogout drops a logged-in session; the sweep announces the departure.
func handleLogout(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn {
		return false
	}
	s.Kill()
	return true
}

// completeLogin reacts to a terminal login state on a session that has not
// yet logged in.
func (s *Server) completeLogin(sess *session.Session) {
	if sess.Dead() {
		return
	}

	switch sess.LoginState {
	case session.Success:
		s.grantAccess(sess)
	case session.InvalidCredentials:
		s.denyAccess(sess, packet.AccessDenied)
	case session.TooManyAttempts:
		s.denyAccess(sess, packet.LimitReached)
	default:
		s.denyAccess(sess, packet.ServerDown)
	}
}

func (s *Server) denyAccess(sess *session.Session, code int) {
	s.logger.Infof("login failed for %s: %s", sess, sess.LoginState)
	s.Send(sess, packet.Status(code))
	sess.Kill()
}

func (s *Server) grantAccess(sess *session.Session) {
	// Two sessions may have been checking the same name at once.
	if holder, ok := s.ByName(sess.Name); ok && holder != sess {
		s.logger.Infof("login for %s lost a race with %s", sess, holder)
		sess.LoginState = session.InvalidCredentials
		s.denyAccess(sess, packet.AccessDenied)
		return
	}

	s.Send(sess, packet.Status(packet.AccessGranted))
	s.Send(sess, packet.New(packet.ClientConfig, packet.Blank, sess.Prefs))

	if err := s.rooms.Join(sess.ID(), s.rooms.Default()); err != nil {
		s.logger.Errorf("failed to place %s in the default room: %v", sess, err)
	}
	sess.LoggedIn = true

	if s.env.TimedMutes.Has(sess.Name, s.env.Now) {
		sess.Muted = true
		sess.TimedMute = true
	}

	s.Send(sess, packet.New(packet.WallMessage, packet.Blank, "Server build "+s.cfg.BuildVersion))
	s.Broadcast(packet.New(packet.UserJoin, sess.Name, s.env.Status(sess)))

	s.logger.Infof("%s logged in", sess)
}
