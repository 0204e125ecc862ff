package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testToken = "123456:TEST-token_value"
	testOwner = 777
)

func testEnv() map[string]string {
	return map[string]string{
		"RELAY_BOT_TOKEN": testToken,
		"RELAY_OWNER_ID":  "777",
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func relayConfig(apiURL string) string {
	return `version: "1"
relay:
  pacing_delay: 10ms
  flood_buffer: 10ms
  allow_users: [888]
modules:
  channel.telegram:
    mode: polling
    polling_timeout: 1
    api_url: ` + apiURL + `
  index.sqlite:
    path: ""
`
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/relayctl"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "relayctl"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuild_InvalidConfigPath(t *testing.T) {
	_, err := Build(context.Background(), RunParams{ConfigPath: "/nonexistent/config.yaml", Env: testEnv()})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestBuild_MissingCredentials(t *testing.T) {
	path := writeConfig(t, relayConfig("http://127.0.0.1:1"))
	_, err := Build(context.Background(), RunParams{
		ConfigPath: path,
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		Env:        map[string]string{},
	})
	if err == nil || !strings.Contains(err.Error(), "RELAY_BOT_TOKEN") {
		t.Errorf("Build() error = %v, want missing RELAY_BOT_TOKEN", err)
	}
}

func TestBuild_RequiresTelegram(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  index.sqlite: {}\n")
	_, err := Build(context.Background(), RunParams{
		ConfigPath: path,
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		Env:        testEnv(),
	})
	if err == nil || !strings.Contains(err.Error(), "channel.telegram") {
		t.Errorf("Build() error = %v, want channel.telegram requirement", err)
	}
}

func TestBuild_WiresRelay(t *testing.T) {
	var logs bytes.Buffer
	dataDir := t.TempDir()
	path := writeConfig(t, relayConfig("http://127.0.0.1:1"))
	rt, err := Build(context.Background(), RunParams{
		ConfigPath: path,
		DataDir:    dataDir,
		LogOutput:  &logs,
		Env:        testEnv(),
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	t.Cleanup(rt.app.Discard)

	if rt.Controller() == nil {
		t.Fatal("controller not wired")
	}
	if rt.ConfigPath() != path {
		t.Errorf("ConfigPath() = %q, want %q", rt.ConfigPath(), path)
	}
	for _, id := range []string{"channel.telegram", "index.sqlite", "security.audit", "relay.controller", "cron.scheduler"} {
		if _, ok := rt.app.Module(id); !ok {
			t.Errorf("module %s missing from lifecycle", id)
		}
	}

	if _, err := os.Stat(filepath.Join(dataDir, "audit.jsonl")); err != nil {
		t.Errorf("audit file not created: %v", err)
	}

	rt.Logger().Info("token check", "token", testToken)
	if strings.Contains(logs.String(), testToken) {
		t.Errorf("bot token leaked into logs:\n%s", logs.String())
	}
}

// fakeBotAPI answers the handful of Bot API methods a polling start needs
// and delivers one queued update.
type fakeBotAPI struct {
	mu      sync.Mutex
	pending []map[string]any
	sent    []map[string]any
	calls   map[string]int
	nextID  atomic.Int64
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()

	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Relay", "username": "relay_bot"}
	case "getUpdates":
		f.mu.Lock()
		updates := f.pending
		f.pending = nil
		f.mu.Unlock()
		if len(updates) == 0 {
			select {
			case <-time.After(20 * time.Millisecond):
			case <-r.Context().Done():
			}
			updates = []map[string]any{}
		}
		result = updates
	case "sendMessage":
		f.mu.Lock()
		f.sent = append(f.sent, body)
		f.mu.Unlock()
		result = map[string]any{
			"message_id": f.nextID.Add(1),
			"chat":       map[string]any{"id": body["chat_id"], "type": "private"},
			"date":       1,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) sentTo(chatID float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.sent, func(m map[string]any) bool {
		id, _ := m["chat_id"].(float64)
		return id == chatID
	})
}

func TestRuntime_StartAnswersCommands(t *testing.T) {
	api := &fakeBotAPI{
		calls: make(map[string]int),
		pending: []map[string]any{{
			"update_id": 1,
			"message": map[string]any{
				"message_id": 5,
				"from":       map[string]any{"id": testOwner, "is_bot": false, "first_name": "Owner"},
				"chat":       map[string]any{"id": testOwner, "type": "private"},
				"date":       1700000000,
				"text":       "/status",
			},
		}},
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	rt, err := Build(context.Background(), RunParams{
		ConfigPath: writeConfig(t, relayConfig(srv.URL)),
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		Env:        testEnv(),
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !api.sentTo(testOwner) {
		if time.Now().After(deadline) {
			t.Fatal("no reply sent to the owner")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.calls["getMe"] != 1 {
		t.Errorf("getMe calls = %d, want 1", api.calls["getMe"])
	}
	if api.calls["setMyCommands"] != 1 {
		t.Errorf("setMyCommands calls = %d, want 1", api.calls["setMyCommands"])
	}
}

func TestServiceConfig(t *testing.T) {
	cfg, err := ServiceConfig(RunParams{ConfigPath: "relayctl.yaml", DataDir: "/var/lib/relayctl"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != ServiceName {
		t.Errorf("Name = %q", cfg.Name)
	}
	abs, _ := filepath.Abs("relayctl.yaml")
	want := []string{"service", "run", "--config", abs, "--data-dir", "/var/lib/relayctl"}
	if !slices.Equal(cfg.Arguments, want) {
		t.Errorf("Arguments = %v, want %v", cfg.Arguments, want)
	}
}

func TestControlService_UnknownAction(t *testing.T) {
	if err := ControlService(nil, "explode"); err == nil {
		t.Error("expected error for unknown action")
	}
}
