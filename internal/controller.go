package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/auth"
	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/core/debug"
	"github.com/rvchat/rvserver/internal/moderation"
	"github.com/rvchat/rvserver/internal/server"
)

// Controller is the main entrypoint for rvserver. It's responsible for
// initializing any shared resources (such as the ban database and logging),
// wiring the chat server to the account service, and launching everything.
type Controller struct {
	Config *core.Config

	logger  *logrus.Logger
	chatLog *core.ChatLog
	bans    *moderation.Store
	wg      sync.WaitGroup
}

// Start runs the chat server until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown()

	var err error
	// Set up the logger, which will be used by every component.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	debug.StartUtilities(c.Config, c.logger)

	c.chatLog, err = core.NewChatLog(c.Config.Logging.ChatLogPath)
	if err != nil {
		return err
	}

	c.bans, err = moderation.Open(c.Config)
	if err != nil {
		return err
	}

	backend := auth.NewHTTPBackend(c.Config, c.logger)
	worker := auth.NewWorker(c.Config, backend, c.bans, c.logger)

	listener := &server.Listener{
		Address:        c.Config.Address(),
		MaxConnections: c.Config.MaxConnections,
		Logger:         c.logger,
	}
	// Failure to bind the socket is considered terminal.
	if err := listener.Listen(ctx); err != nil {
		return err
	}

	// The worker outlives the server loop so that the preference saves queued
	// while disconnecting everyone still reach the account service.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		worker.Run(workerCtx)
	}()

	srv := server.New(c.Config, listener, worker, c.chatLog, c.logger)
	srv.Run(ctx)
	if n := worker.Pending(); n > 0 {
		c.logger.Infof("waiting for %d account service requests", n)
	}
	stopWorker()

	listener.Wait()
	return nil
}

// Shutdown waits for the account service worker to finish its outstanding
// requests, then releases the shared resources.
func (c *Controller) Shutdown() {
	c.wg.Wait()

	if c.chatLog != nil {
		if err := c.chatLog.Close(); err != nil {
			c.logger.Warnf("error closing chat log: %v", err)
		}
	}
	if c.bans != nil {
		if err := c.bans.Close(); err != nil {
			c.logger.Warnf("error closing ban database: %v", err)
		}
	}
}
