package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChatLog records one line per handled packet. Lines are buffered in memory
// until Flush is called, which the server does once per tick.
type ChatLog struct {
	logger *logrus.Logger
	out    *flushWriter
	closer io.Closer
}

type flushWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (f *flushWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Write(p)
}

func (f *flushWriter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Flush()
}

// chatLogFormatter writes "<timestamp> <message>" with nothing else attached.
type chatLogFormatter struct{}

func (chatLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Time.Format("2006-01-02 15:04:05") + " " + e.Message + "\n"), nil
}

// NewChatLog returns a ChatLog appending to path. An empty path returns a
// ChatLog that discards everything.
func NewChatLog(path string) (*ChatLog, error) {
	if path == "" {
		return NewChatLogWriter(io.Discard), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening chat log %s: %w", path, err)
	}
	cl := NewChatLogWriter(f)
	cl.closer = f
	return cl, nil
}

// NewChatLogWriter returns a ChatLog writing to w.
func NewChatLogWriter(w io.Writer) *ChatLog {
	out := &flushWriter{w: bufio.NewWriter(w)}
	return &ChatLog{
		out: out,
		logger: &logrus.Logger{
			Out:       out,
			Formatter: chatLogFormatter{},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
}

// Append adds a timestamped line to the log.
func (c *ChatLog) Append(line string) {
	c.logger.Info(line)
}

// Flush writes any buffered lines to the underlying file.
func (c *ChatLog) Flush() error {
	return c.out.Flush()
}

// Close flushes the log and closes its file.
func (c *ChatLog) Close() error {
	err := c.Flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
