package server

import (
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// handleUserList sends the name and status of everyone logged in. Login is
// not required so that external tools can see who is online.
func handleUserList(env *Env, s *session.Session, p *packet.Packet) bool {
	for _, user := range env.Sessions.LoggedIn() {
		env.Send(s, packet.New(packet.UserList, user.Name, env.Status(user)))
	}
	env.Send(s, packet.New(packet.UserList, packet.Blank, "done"))
	return true
}

const floodNotice = "You are sending messages too quickly. Your last message was not delivered."

// canSpeak reports whether s may send chat text right now.
func canSpeak(env *Env, s *session.Session) bool {
	if !s.LoggedIn || s.Muted {
		return false
	}
	if !s.AllowMessage(env.Now) {
		env.Logger.Debugf("flood limit reached for %s", s)
		env.Send(s, packet.New(packet.WallMessage, packet.Blank, floodNotice))
		return false
	}
	return true
}

func handleRoomMessage(env *Env, s *session.Session, p *packet.Packet) bool {
	if !canSpeak(env, s) {
		return false
	}
	room, ok := env.Rooms.RoomOf(s.ID())
	if !ok {
		return false
	}

	msg := *p
	msg.Actor = s.Name
	env.BroadcastRoom(&msg, room)
	return true
}

func handleRoomAction(env *Env, s *session.Session, p *packet.Packet) bool {
	if !canSpeak(env, s) {
		return false
	}
	room, ok := env.Rooms.RoomOf(s.ID())
	if !ok {
		return false
	}

	env.BroadcastRoom(packet.New(packet.RoomAction, s.Name, p.Message), room)
	return true
}

// handlePrivateMessage delivers the message to the user named in the actor
// field.
func handlePrivateMessage(env *Env, s *session.Session, p *packet.Packet) bool {
	if !canSpeak(env, s) {
		return false
	}
	recipient, ok := env.Sessions.ByName(p.Actor)
	if !ok {
		return false
	}

	env.Send(recipient, packet.New(packet.UserPM, s.Name, p.Message))
	return true
}

func handleAway(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || s.Muted {
		return false
	}

	wasAway := s.Away
	s.Away = true
	s.AwayMessage = p.Message
	env.Broadcast(packet.New(packet.ClientAway, s.Name, s.AwayMessage))

	if !wasAway {
		env.WallMessage(s.Name + " has gone away.")
	}
	return true
}

func handleConfig(env *Env, s *session.Session, p *packet.Packet) bool {
	s.Prefs = p.Message
	return true
}

// handleTyping relays typing notifications to the user named in the actor
// field.
func handleTyping(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || s.Muted {
		return false
	}
	recipient, ok := env.Sessions.ByName(p.Actor)
	if !ok {
		return false
	}

	env.Send(recipient, packet.New(p.Code, s.Name, packet.Blank))
	return true
}
