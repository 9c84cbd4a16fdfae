package session

import (
	"fmt"
	"strings"
	"time"
)

// IsMod reports whether the session's level grants moderator commands.
func (s *Session) IsMod() bool {
	switch s.Level {
	case 'A', 'C', 'c', 'b', 'f', '!':
		return true
	default:
		return false
	}
}

// Idle reports whether an idle announcement has been made since the last
// packet was received.
func (s *Session) Idle() bool {
	return s.LastIdleMinute > 0
}

// Touch records activity at now, clearing both idle and away state.
func (s *Session) Touch(now time.Time) {
	s.LastActive = now
	s.LastIdleMinute = 0
	s.Away = false
	s.AwayMessage = ""
}

// IdleFor returns how long the session has gone without sending a packet.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActive)
}

// AllowMessage consumes one token from the session's flood limiter.
func (s *Session) AllowMessage(now time.Time) bool {
	return s.limiter.AllowN(now, 1)
}

// Status renders the state string other clients display for this session:
// the room name, a '|', then the level character, 'M' when muted, "i" and
// the idle minutes when idle, and "a" and the away message when away. Each
// flag that is not set is written as '_'.
func (s *Session) Status(room string) string {
	var b strings.Builder
	b.WriteString(room)
	b.WriteByte('|')
	b.WriteByte(s.Level)

	if s.Muted {
		b.WriteByte('M')
	} else {
		b.WriteByte('_')
	}

	if s.Idle() {
		fmt.Fprintf(&b, "i%04d", s.LastIdleMinute)
	} else {
		b.WriteByte('_')
	}

	if s.Away {
		b.WriteByte('a')
		b.WriteString(s.AwayMessage)
	} else {
		b.WriteByte('_')
	}

	return b.String()
}
