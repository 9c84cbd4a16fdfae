package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/session"
)

// Largest response body read from the account service.
const maxResponseSize = 8 * 1024

var (
	ErrMalformedResponse = errors.New("malformed login response")
	ErrUnknownToken      = errors.New("unknown login response token")
)

// Backend is the external account service.
type Backend interface {
	// Authenticate checks a username and password. The returned state is
	// always terminal; the level is only meaningful on success.
	Authenticate(ctx context.Context, username, password string) (session.LoginState, byte, error)
	// LoadPrefs fetches the stored preference blob for username.
	LoadPrefs(ctx context.Context, username string) (string, error)
	// SavePrefs stores a payload rendered by Worker.SavePrefs.
	SavePrefs(ctx context.Context, payload url.Values) error
	// SetBanned tells the service an account was banned or unbanned.
	SetBanned(ctx context.Context, username string, banned bool) error
}

// HTTPBackend talks to the account service with form-encoded POSTs.
type HTTPBackend struct {
	client    *http.Client
	loginURL  string
	configURL string
	banURL    string
	userAgent string
	logger    logrus.FieldLogger
}

func NewHTTPBackend(cfg *core.Config, logger logrus.FieldLogger) *HTTPBackend {
	return &HTTPBackend{
		client:    &http.Client{Timeout: cfg.Backend.Timeout},
		loginURL:  cfg.BackendURL(cfg.Backend.LoginPage),
		configURL: cfg.BackendURL(cfg.Backend.ConfigPage),
		banURL:    cfg.BackendURL(cfg.Backend.BanPage),
		userAgent: cfg.Backend.UserAgent,
		logger:    logger,
	}
}

func (b *HTTPBackend) Authenticate(ctx context.Context, username, password string) (session.LoginState, byte, error) {
	form := url.Values{}
	form.Set("username", username)
	// The service expects the password base64 encoded before form encoding.
	form.Set("password", base64.StdEncoding.EncodeToString([]byte(password)))

	body, err := b.post(ctx, b.loginURL, form)
	if err != nil {
		return session.BackendUnavailable, 0, err
	}
	return ParseLoginResponse(body)
}

func (b *HTTPBackend) LoadPrefs(ctx context.Context, username string) (string, error) {
	form := url.Values{}
	form.Set("username", username)

	body, err := b.post(ctx, b.configURL, form)
	if err != nil {
		return "", err
	}
	prefs, ok := ParsePrefs(body)
	if !ok {
		return "", fmt.Errorf("no preferences in response for %s", username)
	}
	return prefs, nil
}

func (b *HTTPBackend) SavePrefs(ctx context.Context, payload url.Values) error {
	_, err := b.post(ctx, b.configURL, payload)
	return err
}

func (b *HTTPBackend) SetBanned(ctx context.Context, username string, banned bool) error {
	if b.banURL == "" {
		return nil
	}

	action := "unban"
	if banned {
		action = "ban"
	}
	form := url.Values{}
	form.Set("username", username)
	form.Set("action", action)

	_, err := b.post(ctx, b.banURL, form)
	return err
}

func (b *HTTPBackend) post(ctx context.Context, target string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	// Every request gets its own connection.
	req.Close = true

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("POST %s: unexpected status %s", target, resp.Status)
	}
	return string(body), nil
}

// ParseLoginResponse finds the LOGIN_<TOKEN>`<level> marker in a login
// response body. Anything that cannot be interpreted is reported as
// BackendUnavailable along with an error describing why.
func ParseLoginResponse(body string) (session.LoginState, byte, error) {
	start := strings.Index(body, "LOGIN_")
	if start < 0 {
		return session.BackendUnavailable, 0, fmt.Errorf("%w: no LOGIN_ token", ErrMalformedResponse)
	}
	delim := strings.IndexByte(body[start:], '`')
	if delim < 0 {
		return session.BackendUnavailable, 0, fmt.Errorf("%w: unterminated token", ErrMalformedResponse)
	}
	delim += start

	token := body[start:delim]
	switch token {
	case "LOGIN_SUCCESS":
		if delim+1 >= len(body) {
			return session.BackendUnavailable, 0, fmt.Errorf("%w: missing level", ErrMalformedResponse)
		}
		return session.Success, body[delim+1], nil
	case "LOGIN_ERROR":
		return session.InvalidCredentials, 0, nil
	case "LOGIN_ERROR_ATTEMPTS":
		return session.TooManyAttempts, 0, nil
	case "LOGIN_SERVER_DOWN":
		return session.BackendUnavailable, 0, nil
	default:
		return session.BackendUnavailable, 0, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
}

// ParsePrefs extracts the preference blob, which starts at "theme" and runs
// to the end of its line.
func ParsePrefs(body string) (string, bool) {
	start := strings.Index(body, "theme")
	if start < 0 {
		return "", false
	}
	prefs := body[start:]
	if end := strings.IndexAny(prefs, "\r\n"); end >= 0 {
		prefs = prefs[:end]
	}
	return prefs, true
}
