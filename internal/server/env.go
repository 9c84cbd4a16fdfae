package server

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/auth"
	"github.com/rvchat/rvserver/internal/moderation"
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

// Broadcaster delivers packets to one or more sessions.
type Broadcaster interface {
	// Send writes p to a single session.
	Send(s *session.Session, p *packet.Packet)
	// Broadcast writes p to every logged-in session.
	Broadcast(p *packet.Packet)
	// BroadcastRoom writes p to every logged-in session in the named room.
	BroadcastRoom(p *packet.Packet, room string)
	// WallMessage sends a server notice to every logged-in moderator.
	WallMessage(message string)
}

// SessionLookup finds live sessions.
type SessionLookup interface {
	// ByName returns the live, logged-in session using name, ignoring case.
	ByName(name string) (*session.Session, bool)
	// LoggedIn returns every live, logged-in session in connection order.
	LoggedIn() []*session.Session
}

// RoomDirectory is the subset of the room directory handlers may use.
type RoomDirectory interface {
	Default() string
	Exists(name string) bool
	Create(name string) error
	Destroy(name string) error
	Join(id session.ID, name string) error
	RoomOf(id session.ID) (string, bool)
	Members(name string) []session.ID
	Names() []string
}

// AuthService accepts work for the account service worker.
type AuthService interface {
	Login(s *session.Session, password string)
	SavePrefs(s *session.Session)
	Ban(username, actor string)
	Unban(username string)
	Completions() []auth.Result
}

// Env is everything a packet handler may touch besides the sending session.
type Env struct {
	Broadcaster
	Sessions   SessionLookup
	Rooms      RoomDirectory
	Auth       AuthService
	TimedBans  *moderation.TimedList
	TimedMutes *moderation.TimedList
	Logger     logrus.FieldLogger

	// Now is the time the current tick started.
	Now time.Time
}

// Status renders the status string of s, including its current room.
func (e *Env) Status(s *session.Session) string {
	room, _ := e.Rooms.RoomOf(s.ID())
	return s.Status(room)
}
