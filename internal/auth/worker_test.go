package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/session"
)

type fakeBackend struct {
	mu       sync.Mutex
	accounts map[string]string
	levels   map[string]byte
	prefs    map[string]string
	saved    []url.Values
	banned   map[string]bool
	down     bool
	block    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: map[string]string{"alice": "pw", "mod": "pw"},
		levels:   map[string]byte{"alice": '_', "mod": 'A'},
		prefs:    map[string]string{"mod": "theme|Mod"},
		banned:   make(map[string]bool),
	}
}

func (f *fakeBackend) Authenticate(ctx context.Context, username, password string) (session.LoginState, byte, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return session.BackendUnavailable, 0, errors.New("connection refused")
	}
	if pw, ok := f.accounts[username]; !ok || pw != password {
		return session.InvalidCredentials, 0, nil
	}
	return session.Success, f.levels[username], nil
}

func (f *fakeBackend) LoadPrefs(ctx context.Context, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prefs[username]; ok {
		return p, nil
	}
	return "", errors.New("no prefs")
}

func (f *fakeBackend) SavePrefs(ctx context.Context, payload url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, payload)
	return nil
}

func (f *fakeBackend) SetBanned(ctx context.Context, username string, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned[username] = banned
	return nil
}

func (f *fakeBackend) savedPayloads() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.saved...)
}

type fakeBanList struct {
	mu     sync.Mutex
	banned map[string]string
}

func (b *fakeBanList) IsBanned(ctx context.Context, username string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.banned[core.Fold(username)]
	return ok, nil
}

func (b *fakeBanList) Ban(ctx context.Context, username, bannedBy string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banned[core.Fold(username)] = bannedBy
	return nil
}

func (b *fakeBanList) Unban(ctx context.Context, username string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.banned[core.Fold(username)]
	delete(b.banned, core.Fold(username))
	return ok, nil
}

func newTestWorker(backend Backend, bans BanList) *Worker {
	cfg := &core.Config{}
	cfg.Backend.PollInterval = time.Millisecond
	cfg.Backend.ShutdownTimeout = time.Second

	logger := logrus.New()
	logger.Out = io.Discard
	return NewWorker(cfg, backend, bans, logger)
}

func newTestSession(t *testing.T, id session.ID, name string) *session.Session {
	t.Helper()
	server, client := net.Pipe()
	s := session.New(id, server, session.Options{}, time.Now())
	s.Name = name
	t.Cleanup(func() {
		s.Kill()
		client.Close()
	})
	return s
}

// waitForResults collects completions until n have arrived.
func waitForResults(t *testing.T, w *Worker, n int) []Result {
	t.Helper()
	var results []Result
	deadline := time.Now().Add(2 * time.Second)
	for len(results) < n && time.Now().Before(deadline) {
		results = append(results, w.Completions()...)
		time.Sleep(time.Millisecond)
	}
	if len(results) < n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	return results
}

func TestWorker_LoginMarksChecking(t *testing.T) {
	w := newTestWorker(newFakeBackend(), nil)
	s := newTestSession(t, 1, "alice")

	w.Login(s, "pw")

	if s.LoginState != session.Checking {
		t.Errorf("expected state = checking, got = %s", s.LoginState)
	}
	if w.Pending() != 1 {
		t.Errorf("expected 1 pending request, got %d", w.Pending())
	}
}

func TestWorker_LoginOutcomes(t *testing.T) {
	backend := newFakeBackend()
	bans := &fakeBanList{banned: map[string]string{core.Fold("Mod"): "someone"}}
	w := newTestWorker(backend, bans)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Login(newTestSession(t, 1, "alice"), "pw")
	w.Login(newTestSession(t, 2, "alice"), "wrong")
	w.Login(newTestSession(t, 3, "mod"), "pw")

	got := waitForResults(t, w, 3)
	want := []Result{
		{SessionID: 1, Username: "alice", State: session.Success, Level: '_', Prefs: core.DefaultPrefs},
		{SessionID: 2, Username: "alice", State: session.InvalidCredentials},
		{SessionID: 3, Username: "mod", State: session.InvalidCredentials},
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}

func TestWorker_LoginBackendDown(t *testing.T) {
	backend := newFakeBackend()
	backend.down = true
	w := newTestWorker(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Login(newTestSession(t, 9, "alice"), "pw")

	got := waitForResults(t, w, 1)
	if got[0].State != session.BackendUnavailable {
		t.Errorf("expected state = backend unavailable, got = %s", got[0].State)
	}
}

func TestWorker_LoadsStoredPrefs(t *testing.T) {
	w := newTestWorker(newFakeBackend(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Login(newTestSession(t, 4, "mod"), "pw")

	got := waitForResults(t, w, 1)
	if got[0].Level != 'A' || got[0].Prefs != "theme|Mod" {
		t.Errorf("unexpected result: %+v", got[0])
	}
}

func TestWorker_SavePrefsSnapshotsSession(t *testing.T) {
	backend := newFakeBackend()
	w := newTestWorker(backend, nil)
	s := newTestSession(t, 1, "alice")
	s.Prefs = "theme|Before"

	w.SavePrefs(s)
	// Later changes to the session must not leak into the queued request.
	s.Prefs = "theme|After"
	s.Name = "renamed"

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(backend.savedPayloads()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	want := []url.Values{{"username": {"alice"}, "chatconfig": {"theme|Before"}}}
	if diff := deep.Equal(backend.savedPayloads(), want); diff != nil {
		t.Error(diff)
	}
}

func TestWorker_BanAndUnban(t *testing.T) {
	backend := newFakeBackend()
	bans := &fakeBanList{banned: make(map[string]string)}
	w := newTestWorker(backend, bans)

	w.Ban("Troll", "mod")
	w.handle(context.Background(), mustPop(t, w))

	if banned, _ := bans.IsBanned(context.Background(), "troll"); !banned {
		t.Error("expected the account to be banned")
	}
	if !backend.banned["Troll"] {
		t.Error("expected the backend to be notified of the ban")
	}

	w.Unban("Troll")
	w.handle(context.Background(), mustPop(t, w))

	if banned, _ := bans.IsBanned(context.Background(), "troll"); banned {
		t.Error("expected the ban to be lifted")
	}
}

func TestWorker_ShutdownFlushesSavesAndDropsLogins(t *testing.T) {
	backend := newFakeBackend()
	w := newTestWorker(backend, nil)

	w.Login(newTestSession(t, 1, "alice"), "pw")
	w.SavePrefs(newTestSession(t, 2, "mod"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if len(backend.savedPayloads()) != 1 {
		t.Errorf("expected the queued save to be sent, got %d", len(backend.savedPayloads()))
	}
	if results := w.Completions(); len(results) != 0 {
		t.Errorf("expected pending logins to be dropped, got %+v", results)
	}
	if w.Pending() != 0 {
		t.Errorf("expected an empty queue, got %d", w.Pending())
	}
}

func mustPop(t *testing.T, w *Worker) Request {
	t.Helper()
	req, ok := w.requests.Pop()
	if !ok {
		t.Fatal("expected a queued request")
	}
	return req
}
