package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const testConfig = `
port: 8450
default_room: Lobby
additional_rooms:
  - Help
  - Games
idle_threshold: 2m
backend:
  host: http://accounts.local/
  login_page: /login.php
  config_page: chatconfig.php
database:
  engine: postgres
  host: localhost
  port: 5432
  name: testdb
  username: testuser
  password: testpassword
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}

	if cfg.Port != 8450 {
		t.Errorf("Port want = 8450, got = %d", cfg.Port)
	}
	if cfg.DefaultRoom != "Lobby" {
		t.Errorf("DefaultRoom want = Lobby, got = %s", cfg.DefaultRoom)
	}
	if diff := cmp.Diff([]string{"Help", "Games"}, cfg.AdditionalRooms); diff != "" {
		t.Errorf("AdditionalRooms unexpected; diff:\n%s", diff)
	}
	if cfg.IdleThreshold != 2*time.Minute {
		t.Errorf("IdleThreshold want = 2m, got = %s", cfg.IdleThreshold)
	}
	// Defaults fill in anything the file leaves out.
	if cfg.KickThreshold != 90*time.Minute {
		t.Errorf("KickThreshold want = 90m, got = %s", cfg.KickThreshold)
	}
	if cfg.TickInterval != 150*time.Millisecond {
		t.Errorf("TickInterval want = 150ms, got = %s", cfg.TickInterval)
	}
	if cfg.Flood.MessagesPerSecond != 0 {
		t.Errorf("Flood.MessagesPerSecond want = 0 (disabled), got = %v", cfg.Flood.MessagesPerSecond)
	}
	if cfg.Backend.DefaultPrefs != DefaultPrefs {
		t.Errorf("Backend.DefaultPrefs want = %s, got = %s", DefaultPrefs, cfg.Backend.DefaultPrefs)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("RVSERVER_BACKEND_LOGIN_PAGE", "other.php")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.Backend.LoginPage != "other.php" {
		t.Errorf("Backend.LoginPage want = other.php, got = %s", cfg.Backend.LoginPage)
	}
}

func TestLoadConfig_MissingRequiredKey(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "port: 1234\n"))
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("LoadConfig() expected ErrMissingKey, got %v", err)
	}
}

func TestLoadConfig_InvalidPorts(t *testing.T) {
	body := strings.Replace(testConfig, "port: 8450\n", "", 1)
	tests := []struct {
		name  string
		extra string
	}{
		{"zero port", "port: 0\n"},
		{"port too large", "port: 70000\n"},
		{"port not a number", "port: chat\n"},
		{"bad pprof port", "port: 8450\ndebugging:\n  enabled: true\n  pprof_port: 0\n"},
		{"debugging not a bool", "port: 8450\ndebugging:\n  enabled: maybe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.extra+body)); err == nil {
				t.Errorf("LoadConfig() expected an error")
			}
		})
	}

	// pprof_port is only checked when debugging is on.
	if _, err := LoadConfig(writeConfig(t, "port: 8450\ndebugging:\n  pprof_port: 0\n"+body)); err != nil {
		t.Errorf("LoadConfig() unexpected error: %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("LoadConfig() expected an error for a directory without config.yaml")
	}
}

func TestConfig_DatabaseURL(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestConfig_BackendURL(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}

	tests := []struct {
		page string
		want string
	}{
		{"/login.php", "http://accounts.local/login.php"},
		{"chatconfig.php", "http://accounts.local/chatconfig.php"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cfg.BackendURL(tt.page); got != tt.want {
			t.Errorf("BackendURL(%q) want = %s, got = %s", tt.page, tt.want, got)
		}
	}
}

func TestSettings(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig+"debugging:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	s := cfg.Settings()

	if v, err := s.Get("backend.login_page", false, ""); err != nil || v != "/login.php" {
		t.Errorf("Get(backend.login_page) = %q, %v", v, err)
	}
	if v, err := s.Get("not.a.key", true, "fallback"); err != nil || v != "fallback" {
		t.Errorf("Get(optional) = %q, %v", v, err)
	}
	if _, err := s.Get("not.a.key", false, ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Get(required) expected ErrMissingKey, got %v", err)
	}
	if v, err := s.GetInt("port", false, 0); err != nil || v != 8450 {
		t.Errorf("GetInt(port) = %d, %v", v, err)
	}
	if v, err := s.GetInt("missing_number", true, 7); err != nil || v != 7 {
		t.Errorf("GetInt(optional) = %d, %v", v, err)
	}
	if _, err := s.GetInt("default_room", false, 0); err == nil {
		t.Error("GetInt(default_room) expected a parse error")
	}
	if v, err := s.GetBool("debugging.enabled", false, false); err != nil || !v {
		t.Errorf("GetBool(debugging.enabled) = %v, %v", v, err)
	}
}

func TestFold(t *testing.T) {
	if Fold("Main") != Fold("mAIN") {
		t.Errorf("Fold() should ignore case: %q vs %q", Fold("Main"), Fold("mAIN"))
	}
	if Fold("Main") == Fold("Mains") {
		t.Error("Fold() should keep distinct names distinct")
	}
}

func TestChatLog(t *testing.T) {
	var buf bytes.Buffer
	cl := NewChatLogWriter(&buf)

	cl.Append("alice@127.0.0.1\t3`alice`hi`0`0`0")
	if buf.Len() != 0 {
		t.Fatalf("ChatLog wrote before Flush: %q", buf.String())
	}

	if err := cl.Flush(); err != nil {
		t.Fatalf("Flush() unexpected error: %v", err)
	}
	line := buf.String()
	if !strings.HasSuffix(line, " alice@127.0.0.1\t3`alice`hi`0`0`0\n") {
		t.Errorf("unexpected chat log line: %q", line)
	}
	if _, err := time.Parse("2006-01-02 15:04:05", line[:19]); err != nil {
		t.Errorf("chat log line does not start with a timestamp: %q", line)
	}
}

func TestNewChatLog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	cl, err := NewChatLog(path)
	if err != nil {
		t.Fatalf("NewChatLog() unexpected error: %v", err)
	}
	cl.Append("hello")
	if err := cl.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read chat log: %v", err)
	}
	if !strings.HasSuffix(string(contents), " hello\n") {
		t.Errorf("unexpected chat log contents: %q", contents)
	}
}
