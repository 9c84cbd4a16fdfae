package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
)

type sample struct {
	Code    int
	Message string
}

func newBufferLogger(buf *bytes.Buffer) *logrus.Logger {
	logger := logrus.New()
	logger.Out = buf
	logger.Level = logrus.DebugLevel
	return logger
}

func TestPacketLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &core.Config{}
	cfg.Debugging.Enabled = true
	cfg.Debugging.PacketLoggingEnabled = true

	pl := NewPacketLogger(cfg, newBufferLogger(&buf))
	pl.Received("127.0.0.1", &sample{Code: 3, Message: "hello"})

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected the packet to be logged, got %q", buf.String())
	}
}

func TestPacketLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	pl := NewPacketLogger(&core.Config{}, newBufferLogger(&buf))
	pl.Sent("127.0.0.1", &sample{Code: 3})

	if buf.Len() != 0 {
		t.Errorf("expected nothing to be logged, got %q", buf.String())
	}

	var nilLogger *PacketLogger
	if nilLogger.Enabled() {
		t.Error("a nil PacketLogger should report disabled")
	}
}
