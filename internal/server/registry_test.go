package server

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

func TestRegistry_Handles(t *testing.T) {
	r := NewRegistry()

	handled := []int{
		packet.UserList, packet.UserJoin, packet.UserPart, packet.RoomMessage,
		packet.RoomAction, packet.UserPM, packet.UserKick, packet.UserDisable,
		packet.UserBan, packet.UserUnban, packet.UserMute, packet.UserUnmute,
		packet.IPQuery, packet.UserTimedBan, packet.UserTimedMute, packet.ModChat,
		packet.ForceClear, packet.JoinRoom, packet.CreateRoom, packet.DestroyRoom,
		packet.RoomList, packet.ForceJoin, packet.ClientAway, packet.ClientConfig,
		packet.WallMessage, packet.StartTyping, packet.StopTyping, packet.ResetTyping,
	}
	for _, code := range handled {
		if !r.handles(code) {
			t.Errorf("no handler for %s", packet.CodeName(code))
		}
	}

	// Server-to-client only.
	for _, code := range []int{packet.AccessGranted, packet.ServerDown, packet.IdleKick, packet.ClientIdle, 999} {
		if r.handles(code) {
			t.Errorf("unexpected handler for %s", packet.CodeName(code))
		}
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a duplicate registration")
		}
	}()
	newRegistry([]route{
		{packet.RoomList, handleRoomList},
		{packet.RoomList, handleUserList},
	})
}

func TestRegistry_Dispatch(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	env := &Env{Logger: logger}

	var calls int
	r := newRegistry([]route{
		{packet.ClientConfig, func(env *Env, s *session.Session, p *packet.Packet) bool {
			calls++
			s.Prefs = p.Message
			return true
		}},
	})

	s := &session.Session{}
	if !r.Dispatch(env, s, packet.New(packet.ClientConfig, packet.Blank, "theme")) {
		t.Error("Dispatch() returned false for a handled packet")
	}
	if r.Dispatch(env, s, packet.New(42, "x", "y")) {
		t.Error("Dispatch() returned true for an unknown code")
	}
	if calls != 1 || s.Prefs != "theme" {
		t.Errorf("handler calls want = 1, got = %d (prefs %q)", calls, s.Prefs)
	}
}
