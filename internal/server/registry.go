package server

import (
	"github.com/rvchat/rvserver/internal/core/debug"
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// Handler processes one packet from s. It reports whether the packet was
// acted upon, which decides whether it is written to the chat log.
type Handler func(env *Env, s *session.Session, p *packet.Packet) bool

// Registry maps packet codes to their handlers. It is built once and never
// modified afterwards.
type Registry struct {
	handlers map[int]Handler
}

type route struct {
	code    int
	handler Handler
}

// NewRegistry returns the registry of every packet the server understands.
func NewRegistry() *Registry {
	return newRegistry([]route{
		{packet.UserList, handleUserList},
		{packet.UserJoin, handleLogin},
		{packet.UserPart, handleLogout},
		{packet.RoomMessage, handleRoomMessage},
		{packet.RoomAction, handleRoomAction},
		{packet.UserPM, handlePrivateMessage},
		{packet.UserKick, handleRemoveAction},
		{packet.UserDisable, handleRemoveAction},
		{packet.UserBan, handleBan},
		{packet.UserUnban, handleUnban},
		{packet.UserMute, handleMute},
		{packet.UserUnmute, handleUnmute},
		{packet.IPQuery, handleIPQuery},
		{packet.UserTimedBan, handleTimedBan},
		{packet.UserTimedMute, handleTimedMute},
		{packet.ModChat, handleModChat},
		{packet.ForceClear, handleForceClear},
		{packet.JoinRoom, handleJoinRoom},
		{packet.CreateRoom, handleCreateRoom},
		{packet.DestroyRoom, handleDestroyRoom},
		{packet.RoomList, handleRoomList},
		{packet.ForceJoin, handleForceJoin},
		{packet.ClientAway, handleAway},
		{packet.ClientConfig, handleConfig},
		{packet.WallMessage, handleWallMessage},
		{packet.StartTyping, handleTyping},
		{packet.StopTyping, handleTyping},
		{packet.ResetTyping, handleTyping},
	})
}

func newRegistry(routes []route) *Registry {
	r := &Registry{handlers: make(map[int]Handler, len(routes))}
	for _, rt := range routes {
		if _, ok := r.handlers[rt.code]; ok {
			panic("duplicate handler for " + packet.CodeName(rt.code))
		}
		r.handlers[rt.code] = rt.handler
	}
	return r
}

// Dispatch runs the handler registered for p. Unknown codes are logged and
// otherwise ignored.
func (r *Registry) Dispatch(env *Env, s *session.Session, p *packet.Packet) bool {
	handler, ok := r.handlers[p.Code]
	if !ok {
		env.Logger.Debugf("unhandled packet from %s:\n%s", s, debug.Dump(p))
		return false
	}
	return handler(env, s, p)
}

// handles reports whether code has a registered handler.
func (r *Registry) handles(code int) bool {
	_, ok := r.handlers[code]
	return ok
}
