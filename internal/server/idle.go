package server

import (
	"fmt"
	"time"

	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// checkIdle kicks sessions idle past the kick threshold and otherwise
// announces each newly crossed idle minute once.
func (s *Server) checkIdle(sess *session.Session, now time.Time) {
	idle := sess.IdleFor(now)

	if s.cfg.KickThreshold > 0 && idle >= s.cfg.KickThreshold {
		s.logger.Infof("kicking %s after %s idle", sess, idle.Truncate(time.Second))
		s.Send(sess, packet.Status(packet.IdleKick))
		sess.Kill()
		return
	}

	if s.cfg.IdleThreshold <= 0 || idle < s.cfg.IdleThreshold {
		return
	}

	minutes := int(idle / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if minutes == sess.LastIdleMinute {
		return
	}
	sess.LastIdleMinute = minutes
	s.Broadcast(packet.New(packet.ClientIdle, sess.Name, fmt.Sprintf("%04d", minutes)))
}

// checkTimedMute lifts a timed mute once it has expired.
func (s *Server) checkTimedMute(sess *session.Session, now time.Time) {
	if !sess.TimedMute || s.env.TimedMutes.Has(sess.Name, now) {
		return
	}
	sess.TimedMute = false
	sess.Muted = false
	s.Broadcast(packet.New(packet.UserUnmute, sess.Name, packet.Blank))
}
