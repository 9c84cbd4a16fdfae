package server

import (
	"errors"

	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/room"
	"github.com/rvchat/rvserver/internal/session"
)

func handleJoinRoom(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn {
		return false
	}
	if err := env.Rooms.Join(s.ID(), p.Message); err != nil {
		return false
	}

	env.Broadcast(packet.New(packet.JoinRoom, s.Name, p.Message))
	return true
}

func handleCreateRoom(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}

	name := p.Message
	if err := env.Rooms.Create(name); err != nil {
		var reason string
		switch {
		case errors.Is(err, room.ErrRoomExists):
			reason = "That room already exists!"
		case errors.Is(err, room.ErrNameTooLong):
			reason = "That room name is too long!"
		default:
			reason = "That room name is not allowed!"
		}
		env.Send(s, packet.New(packet.WallMessage, packet.Blank, reason))
		return false
	}

	if err := env.Rooms.Join(s.ID(), name); err != nil {
		env.Logger.Warnf("%s could not join newly created room %s: %v", s, name, err)
	}

	env.Broadcast(packet.New(packet.CreateRoom, packet.Blank, name))
	env.Broadcast(packet.New(packet.JoinRoom, s.Name, name))
	return true
}

func handleDestroyRoom(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}

	moved := len(env.Rooms.Members(p.Message))
	err := env.Rooms.Destroy(p.Message)
	switch {
	case errors.Is(err, room.ErrDefaultRoom):
		env.Send(s, packet.New(packet.WallMessage, packet.Blank,
			"[Server] I'm afraid I can't let you do that, "+s.Name))
		return true
	case err != nil:
		return false
	}

	env.Logger.Infof("%s destroyed room %s, moving %d users to %s", s.Name, p.Message, moved, env.Rooms.Default())
	env.Broadcast(packet.New(packet.DestroyRoom, packet.Blank, p.Message))
	return true
}

func handleRoomList(env *Env, s *session.Session, p *packet.Packet) bool {
	for _, name := range env.Rooms.Names() {
		env.Send(s, packet.New(packet.RoomList, packet.Blank, name))
	}
	return true
}

// handleForceJoin moves the user named in the actor field into the room
// named in the message field.
func handleForceJoin(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}
	target, ok := env.Sessions.ByName(p.Actor)
	if !ok {
		return false
	}
	if err := env.Rooms.Join(target.ID(), p.Message); err != nil {
		return false
	}

	env.Broadcast(packet.New(packet.JoinRoom, target.Name, p.Message))
	env.WallMessage(target.Name + " was forced to join " + p.Message + " by " + s.Name)
	return true
}
