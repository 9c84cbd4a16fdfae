// Package session wraps a client connection with the per-user state the chat
// server tracks for it.
//
// All of a Session's exported state is owned by the server loop goroutine.
// The only work done elsewhere is socket I/O: a reader goroutine feeds an
// inbox that Poll drains without blocking, and a writer goroutine drains the
// outbox that Write fills without blocking.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrClosed is returned once the connection has been closed by either side.
	ErrClosed = errors.New("session closed")
	// ErrWouldBlock is returned when a session's outbound queue is full.
	ErrWouldBlock = errors.New("write would block")
	// ErrOverflow is returned when a client sends more than the read buffer
	// can hold without a newline.
	ErrOverflow = errors.New("read buffer overflow")
)

// ID identifies a session for its whole lifetime. IDs are never reused.
type ID uint64

// DefaultLevel is the level character of an ordinary user.
const DefaultLevel = '_'

const (
	inboxSize = 64
	readChunk = 1024
)

// Options controls the resources allotted to each session.
type Options struct {
	// Bytes buffered without a newline before the client is dropped.
	ReadBufferSize int
	// Packets queued for writing before the client is considered dead.
	WriteQueueSize int
	// Deadline for a single write. Zero disables it.
	WriteTimeout time.Duration
	// Sustained chat messages per second. Zero disables flood control.
	FloodRate  float64
	FloodBurst int
}

// Session represents a user connected to the chat server.
type Session struct {
	id     ID
	conn   net.Conn
	ipAddr string
	port   string

	inbox   chan []byte
	readErr error
	pending []byte
	maxRead int

	outbox       chan []byte
	writeTimeout time.Duration

	dead     atomic.Bool
	done     chan struct{}
	finished chan struct{}
	killOnce sync.Once

	limiter *rate.Limiter

	// Name is the display name. It is the requested name until login
	// succeeds and unique among logged-in sessions afterwards.
	Name string
	// Level is the account level character reported by the backend.
	Level byte
	// LoginState is advanced by the server loop only.
	LoginState LoginState
	LoggedIn   bool
	Muted      bool
	Away       bool
	// TimedMute marks a mute that lifts itself once it expires.
	TimedMute bool
	// AwayMessage is only meaningful while Away is set.
	AwayMessage string
	// Prefs is the opaque preference blob stored by the account backend.
	Prefs string
	// LastActive is the time of the last packet received.
	LastActive time.Time
	// LastIdleMinute is the idle minute last announced, zero when not idle.
	LastIdleMinute int
}

// New wraps conn and starts its reader and writer goroutines.
func New(id ID, conn net.Conn, opts Options, now time.Time) *Session {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = 4096
	}
	if opts.WriteQueueSize <= 0 {
		opts.WriteQueueSize = 256
	}

	limit := rate.Inf
	if opts.FloodRate > 0 {
		limit = rate.Limit(opts.FloodRate)
		if opts.FloodBurst < 1 {
			opts.FloodBurst = 1
		}
	}

	s := &Session{
		id:           id,
		conn:         conn,
		inbox:        make(chan []byte, inboxSize),
		maxRead:      opts.ReadBufferSize,
		outbox:       make(chan []byte, opts.WriteQueueSize),
		writeTimeout: opts.WriteTimeout,
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
		limiter:      rate.NewLimiter(limit, opts.FloodBurst),
		Name:         "<no name>",
		Level:        DefaultLevel,
		LastActive:   now,
	}
	s.ipAddr, s.port = splitAddr(conn.RemoteAddr())

	go s.readLoop()
	go s.writeLoop()

	return s
}

func splitAddr(addr net.Addr) (string, string) {
	if addr == nil {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return host, port
}

func (s *Session) ID() ID         { return s.id }
func (s *Session) IPAddr() string { return s.ipAddr }
func (s *Session) Port() string   { return s.port }

func (s *Session) String() string {
	return fmt.Sprintf("%s@%s", s.Name, s.ipAddr)
}

// Poll returns every complete line received since the last call, including
// the trailing newline, without blocking. Bytes after the last newline are
// held until the rest of the line arrives. An empty result with a nil error
// means nothing new is available.
func (s *Session) Poll() (string, error) {
	if s.Dead() {
		return "", ErrClosed
	}

	closed := false
drain:
	for {
		select {
		case chunk, ok := <-s.inbox:
			if !ok {
				closed = true
				break drain
			}
			s.pending = append(s.pending, chunk...)
		default:
			break drain
		}
	}

	var out string
	if i := bytes.LastIndexByte(s.pending, '\n'); i >= 0 {
		out = string(s.pending[:i+1])
		s.pending = append(s.pending[:0], s.pending[i+1:]...)
	}

	if len(s.pending) > s.maxRead {
		s.Kill()
		return out, ErrOverflow
	}
	if closed {
		s.Kill()
		if s.readErr != nil {
			return out, fmt.Errorf("%w: %v", ErrClosed, s.readErr)
		}
		return out, ErrClosed
	}
	return out, nil
}

// Write queues data for delivery. A full queue means the client is not
// keeping up, so the session is killed instead of waiting.
func (s *Session) Write(data []byte) error {
	if s.Dead() {
		return ErrClosed
	}
	select {
	case s.outbox <- data:
		return nil
	default:
		s.Kill()
		return ErrWouldBlock
	}
}

// Kill marks the session dead. Anything already queued is still written
// before the connection is closed.
func (s *Session) Kill() {
	s.killOnce.Do(func() {
		s.dead.Store(true)
		close(s.done)
	})
}

// Dead reports whether the session has been killed or its connection lost.
func (s *Session) Dead() bool {
	return s.dead.Load()
}

// Finished is closed once the connection has been closed.
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

func (s *Session) readLoop() {
	defer close(s.inbox)

	buf := make([]byte, readChunk)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.inbox <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer close(s.finished)
	defer s.conn.Close()

	for {
		select {
		case data := <-s.outbox:
			if err := s.send(data); err != nil {
				s.Kill()
				return
			}
		case <-s.done:
			for {
				select {
				case data := <-s.outbox:
					if err := s.send(data); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) send(data []byte) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.Write(data)
	return err
}
