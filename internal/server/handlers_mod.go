package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

var actionNames = map[int]string{
	packet.UserKick:    "kicked",
	packet.UserDisable: "disabled",
	packet.UserBan:     "banned",
	packet.UserMute:    "muted",
	packet.UserUnmute:  "unmuted",
	packet.IPQuery:     "IP queried",
}

// modTarget returns the logged-in session named name when s is allowed to
// act on it.
func modTarget(env *Env, s *session.Session, name string) (*session.Session, bool) {
	if !s.LoggedIn || !s.IsMod() {
		return nil, false
	}
	return env.Sessions.ByName(name)
}

// handleRemoveAction disconnects the user named in the message field.
func handleRemoveAction(env *Env, s *session.Session, p *packet.Packet) bool {
	_, ok := removeTarget(env, s, p.Code, p.Message)
	return ok
}

func removeTarget(env *Env, s *session.Session, code int, name string) (*session.Session, bool) {
	target, ok := modTarget(env, s, name)
	if !ok {
		return nil, false
	}

	env.WallMessage(fmt.Sprintf("%s was %s by %s", target.Name, actionNames[code], s.Name))
	env.Send(target, packet.Status(code))
	target.Kill()
	return target, true
}

func handleBan(env *Env, s *session.Session, p *packet.Packet) bool {
	target, ok := removeTarget(env, s, packet.UserBan, p.Message)
	if !ok {
		return false
	}
	env.Auth.Ban(target.Name, s.Name)
	return true
}

// handleUnban lifts both kinds of ban on the account named in the message
// field. The account does not need to be online.
func handleUnban(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() || p.Message == "" || p.Message == packet.Blank {
		return false
	}

	env.TimedBans.Remove(p.Message)
	env.Auth.Unban(p.Message)
	env.WallMessage(fmt.Sprintf("%s was unbanned by %s", p.Message, s.Name))
	return true
}

func handleMute(env *Env, s *session.Session, p *packet.Packet) bool {
	return setMuted(env, s, p.Code, p.Message, true)
}

func handleUnmute(env *Env, s *session.Session, p *packet.Packet) bool {
	return setMuted(env, s, p.Code, p.Message, false)
}

func setMuted(env *Env, s *session.Session, code int, name string, muted bool) bool {
	target, ok := modTarget(env, s, name)
	if !ok {
		return false
	}

	target.Muted = muted
	if !muted {
		target.TimedMute = false
		env.TimedMutes.Remove(target.Name)
	}

	env.Broadcast(packet.New(code, target.Name, s.Name))
	return true
}

// handleIPQuery answers with the address of the user named in the actor
// field.
func handleIPQuery(env *Env, s *session.Session, p *packet.Packet) bool {
	target, ok := modTarget(env, s, p.Actor)
	if !ok {
		return false
	}

	env.Send(s, packet.New(packet.IPQuery, target.Name, target.IPAddr()))
	env.WallMessage(fmt.Sprintf("%s was %s by %s", target.Name, actionNames[packet.IPQuery], s.Name))
	return true
}

func parseMinutes(s string) (time.Duration, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}

// handleTimedBan bars the user named in the actor field from logging in for
// the number of minutes in the message field, disconnecting them if online.
func handleTimedBan(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() || p.Actor == "" || p.Actor == packet.Blank {
		return false
	}
	d, ok := parseMinutes(p.Message)
	if !ok {
		return false
	}

	env.TimedBans.Add(p.Actor, env.Now.Add(d))

	name := p.Actor
	if target, ok := env.Sessions.ByName(p.Actor); ok {
		name = target.Name
		env.Send(target, packet.Status(packet.UserBan))
		target.Kill()
	}

	env.WallMessage(fmt.Sprintf("%s was banned for %d minutes by %s", name, int(d/time.Minute), s.Name))
	return true
}

// handleTimedMute mutes the user named in the actor field for the number of
// minutes in the message field. The server lifts the mute when it expires.
func handleTimedMute(env *Env, s *session.Session, p *packet.Packet) bool {
	target, ok := modTarget(env, s, p.Actor)
	if !ok {
		return false
	}
	d, ok := parseMinutes(p.Message)
	if !ok {
		return false
	}

	env.TimedMutes.Add(target.Name, env.Now.Add(d))
	target.Muted = true
	target.TimedMute = true

	env.Broadcast(packet.New(packet.UserMute, target.Name, s.Name))
	env.WallMessage(fmt.Sprintf("%s was muted for %d minutes by %s", target.Name, int(d/time.Minute), s.Name))
	return true
}

// handleModChat relays a message to moderators only.
func handleModChat(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}

	msg := packet.New(packet.ModChat, s.Name, p.Message)
	for _, user := range env.Sessions.LoggedIn() {
		if user.IsMod() {
			env.Send(user, msg)
		}
	}
	return true
}

func handleForceClear(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}
	env.Broadcast(packet.New(packet.ForceClear, s.Name, packet.Blank))
	return true
}

func handleWallMessage(env *Env, s *session.Session, p *packet.Packet) bool {
	if !s.LoggedIn || !s.IsMod() {
		return false
	}
	env.Broadcast(packet.New(packet.WallMessage, packet.Blank, p.Message))
	return true
}
