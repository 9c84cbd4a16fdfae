package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnSource hands the server loop newly accepted connections without
// blocking.
type ConnSource interface {
	// Poll returns a pending connection, if there is one.
	Poll() (net.Conn, bool)
	// SetActive tells the source how many connections are currently open.
	SetActive(n int)
}

// Listener accepts TCP connections on its own goroutine and queues them for
// the server loop.
type Listener struct {
	Address        string
	MaxConnections int
	Logger         logrus.FieldLogger

	socket      *net.TCPListener
	connections chan net.Conn
	active      atomic.Int64
	wg          sync.WaitGroup
}

// Listen opens the socket and starts accepting. Context cancellation stops
// the accept loop.
func (l *Listener) Listen(ctx context.Context) error {
	hostAddr, err := net.ResolveTCPAddr("tcp", l.Address)
	if err != nil {
		return fmt.Errorf("error resolving address %s: %w", l.Address, err)
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return fmt.Errorf("error listening on socket: %w", err)
	}
	l.socket = socket
	l.connections = make(chan net.Conn, 64)

	l.Logger.Infof("waiting for connections on %v", socket.Addr())

	l.wg.Add(1)
	go l.acceptLoop(ctx)
	go func() {
		<-ctx.Done()
		socket.Close()
	}()

	return nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.socket.Addr()
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		// Poll until we can accept more clients.
		for l.MaxConnections > 0 && l.active.Load() >= int64(l.MaxConnections) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		connection, err := l.socket.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.Logger.Warnf("failed to accept connection: %s", err.Error())
			continue
		}

		select {
		case l.connections <- connection:
			l.active.Add(1)
		case <-ctx.Done():
			connection.Close()
			return
		}
	}
}

func (l *Listener) Poll() (net.Conn, bool) {
	select {
	case c := <-l.connections:
		return c, true
	default:
		return nil, false
	}
}

func (l *Listener) SetActive(n int) {
	l.active.Store(int64(n))
}

// Wait blocks until the accept loop has exited, then closes any connections
// that were accepted but never handed to the server loop.
func (l *Listener) Wait() {
	l.wg.Wait()

	for {
		select {
		case c := <-l.connections:
			c.Close()
		default:
			return
		}
	}
}
