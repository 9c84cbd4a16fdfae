// Package debug holds the utilities started when the server runs in debug mode.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
)

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(cfg *core.Config, logger logrus.FieldLogger) {
	if cfg.Debugging.Enabled {
		startPprofServer(cfg.Debugging.PprofPort, logger)
	}
}

// This function starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server. See https://golang.org/pkg/net/http/pprof/
func startPprofServer(port int, logger logrus.FieldLogger) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// PacketLogger dumps every packet passing through a connection when packet
// logging is enabled.
type PacketLogger struct {
	enabled bool
	logger  logrus.FieldLogger
}

// NewPacketLogger returns a PacketLogger honoring the packet_logging_enabled setting.
func NewPacketLogger(cfg *core.Config, logger logrus.FieldLogger) *PacketLogger {
	return &PacketLogger{
		enabled: cfg.Debugging.Enabled && cfg.Debugging.PacketLoggingEnabled,
		logger:  logger,
	}
}

// Enabled reports whether packets are being logged.
func (p *PacketLogger) Enabled() bool {
	return p != nil && p.enabled
}

// Received logs a packet read from the client at addr.
func (p *PacketLogger) Received(addr string, packet interface{}) {
	if p.Enabled() {
		p.logger.Debugf("[%s] client -> server\n%s", addr, Dump(packet))
	}
}

// Sent logs a packet written to the client at addr.
func (p *PacketLogger) Sent(addr string, packet interface{}) {
	if p.Enabled() {
		p.logger.Debugf("[%s] server -> client\n%s", addr, Dump(packet))
	}
}

// Dump renders v for inclusion in a log line.
func Dump(v interface{}) string {
	return spew.Sdump(v)
}
