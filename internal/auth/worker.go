// Package auth bridges the server loop to the external account service.
//
// The loop never blocks on the service. It pushes requests onto a queue that
// a single Worker goroutine handles in order, and it collects login outcomes
// from a second queue once per tick.
package auth

import (
	"context"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/session"
)

// Kind distinguishes the requests the worker handles.
type Kind int

const (
	KindLogin Kind = iota
	KindSavePrefs
	KindBan
	KindUnban
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindSavePrefs:
		return "save prefs"
	case KindBan:
		return "ban"
	case KindUnban:
		return "unban"
	default:
		return "unknown"
	}
}

// Request is a unit of work for the worker. It never references a live
// session; everything needed is copied in when the request is made.
type Request struct {
	Kind      Kind
	SessionID session.ID
	Username  string
	Password  string
	Actor     string
	Payload   url.Values
}

// Result is the outcome of a login request.
type Result struct {
	SessionID session.ID
	Username  string
	State     session.LoginState
	Level     byte
	Prefs     string
}

// BanList is the persistent record of banned accounts.
type BanList interface {
	IsBanned(ctx context.Context, username string) (bool, error)
	Ban(ctx context.Context, username, bannedBy string) error
	Unban(ctx context.Context, username string) (bool, error)
}

// Worker performs blocking account service calls on its own goroutine.
type Worker struct {
	backend Backend
	bans    BanList
	logger  logrus.FieldLogger

	defaultPrefs    string
	pollInterval    time.Duration
	shutdownTimeout time.Duration

	requests *Queue[Request]
	results  *Queue[Result]
}

// NewWorker returns a Worker using backend for accounts and preferences.
// bans may be nil, in which case only the backend decides who may log in.
func NewWorker(cfg *core.Config, backend Backend, bans BanList, logger logrus.FieldLogger) *Worker {
	w := &Worker{
		backend:         backend,
		bans:            bans,
		logger:          logger,
		defaultPrefs:    cfg.Backend.DefaultPrefs,
		pollInterval:    cfg.Backend.PollInterval,
		shutdownTimeout: cfg.Backend.ShutdownTimeout,
		requests:        NewQueue[Request](),
		results:         NewQueue[Result](),
	}
	if w.defaultPrefs == "" {
		w.defaultPrefs = core.DefaultPrefs
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 25 * time.Millisecond
	}
	return w
}

// Login marks s as Checking and queues its credentials. The state changes
// before the request is queued so the session cannot be swept while the
// check is outstanding.
func (w *Worker) Login(s *session.Session, password string) {
	s.LoginState = session.Checking
	w.requests.Push(Request{
		Kind:      KindLogin,
		SessionID: s.ID(),
		Username:  s.Name,
		Password:  password,
	})
}

// SavePrefs queues the current preferences of s for storage.
func (w *Worker) SavePrefs(s *session.Session) {
	w.requests.Push(Request{
		Kind:     KindSavePrefs,
		Username: s.Name,
		Payload: url.Values{
			"username":   {s.Name},
			"chatconfig": {s.Prefs},
		},
	})
}

// Ban queues a permanent ban of username issued by actor.
func (w *Worker) Ban(username, actor string) {
	w.requests.Push(Request{Kind: KindBan, Username: username, Actor: actor})
}

// Unban queues the removal of a permanent ban.
func (w *Worker) Unban(username string) {
	w.requests.Push(Request{Kind: KindUnban, Username: username})
}

// Completions returns every login outcome produced since the last call.
func (w *Worker) Completions() []Result {
	return w.results.Drain()
}

// Pending returns the number of requests not yet handled.
func (w *Worker) Pending() int {
	return w.requests.Len()
}

// Run handles requests until ctx is cancelled. Preference saves and bans
// still queued at that point are sent before Run returns; pending logins
// are dropped since nobody is left to receive them.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		default:
		}

		req, ok := w.requests.Pop()
		if !ok {
			select {
			case <-ctx.Done():
			case <-w.requests.Ready():
			case <-time.After(w.pollInterval):
			}
			continue
		}
		w.handle(ctx, req)
	}
}

func (w *Worker) shutdown() {
	ctx := context.Background()
	if w.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.shutdownTimeout)
		defer cancel()
	}

	for _, req := range w.requests.Drain() {
		if req.Kind == KindLogin {
			continue
		}
		if ctx.Err() != nil {
			w.logger.Warnf("dropping %s request for %s: shutdown timed out", req.Kind, req.Username)
			continue
		}
		w.handle(ctx, req)
	}
}

func (w *Worker) handle(ctx context.Context, req Request) {
	switch req.Kind {
	case KindLogin:
		w.results.Push(w.login(ctx, req))
	case KindSavePrefs:
		if err := w.backend.SavePrefs(ctx, req.Payload); err != nil {
			w.logger.Warnf("failed to save preferences for %s: %v", req.Username, err)
		}
	case KindBan:
		w.setBanned(ctx, req, true)
	case KindUnban:
		w.setBanned(ctx, req, false)
	default:
		w.logger.Errorf("unknown request kind %d", req.Kind)
	}
	w.logger.Debugf("handled %s request for %s", req.Kind, req.Username)
}

func (w *Worker) login(ctx context.Context, req Request) Result {
	result := Result{SessionID: req.SessionID, Username: req.Username}

	if w.bans != nil {
		banned, err := w.bans.IsBanned(ctx, req.Username)
		if err != nil {
			w.logger.Warnf("error checking ban list for %s: %v", req.Username, err)
		} else if banned {
			w.logger.Infof("refusing login for banned account %s", req.Username)
			result.State = session.InvalidCredentials
			return result
		}
	}

	state, level, err := w.backend.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		w.logger.Warnf("login for %s failed: %v", req.Username, err)
	}
	result.State = state
	if state != session.Success {
		return result
	}

	result.Level = level
	prefs, err := w.backend.LoadPrefs(ctx, req.Username)
	if err != nil || prefs == "" {
		w.logger.Infof("using default preferences for %s: %v", req.Username, err)
		prefs = w.defaultPrefs
	}
	result.Prefs = prefs
	return result
}

func (w *Worker) setBanned(ctx context.Context, req Request, banned bool) {
	if w.bans != nil {
		var err error
		if banned {
			err = w.bans.Ban(ctx, req.Username, req.Actor)
		} else {
			_, err = w.bans.Unban(ctx, req.Username)
		}
		if err != nil {
			w.logger.Errorf("failed to record %s of %s: %v", req.Kind, req.Username, err)
		}
	}
	if err := w.backend.SetBanned(ctx, req.Username, banned); err != nil {
		w.logger.Warnf("failed to notify backend of %s of %s: %v", req.Kind, req.Username, err)
	}
}
