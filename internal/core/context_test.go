package core

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := NewAppContext(logger, "/data")
	child := ctx.ForModule("channel.telegram")
	child.Logger.Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte("module=channel.telegram")) {
		t.Errorf("child logger output = %q, want module attribute", buf.String())
	}
	if child.DataDir != "/data" {
		t.Errorf("DataDir = %q, want /data", child.DataDir)
	}
}

func TestAppContext_ServicesSharedAcrossModules(t *testing.T) {
	ctx := NewAppContext(nil, "")
	a := ctx.ForModule("index.sqlite")
	b := ctx.ForModule("channel.telegram")

	a.RegisterService("index.messages", 42)

	got, ok := ServiceAs[int](b, "index.messages")
	if !ok || got != 42 {
		t.Fatalf("ServiceAs = %d, %v; want 42, true", got, ok)
	}
	if _, ok := ServiceAs[string](b, "index.messages"); ok {
		t.Error("ServiceAs with wrong type should report false")
	}
	if _, ok := ctx.Service("missing"); ok {
		t.Error("Service(missing) should report false")
	}
}

func TestAppContext_LoadModule(t *testing.T) {
	t.Cleanup(resetRegistry)

	provisioned := false
	validated := false
	RegisterModule(&trackingModule{
		id:          "test.loadmod",
		onProvision: func() { provisioned = true },
		onValidate:  func() { validated = true },
	})

	mod, err := NewAppContext(nil, "").LoadModule("test.loadmod")
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	if mod == nil {
		t.Fatal("expected non-nil module")
	}
	if !provisioned {
		t.Error("expected Provision to be called")
	}
	if !validated {
		t.Error("expected Validate to be called")
	}
}

func TestAppContext_LoadModule_Errors(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.provfail", provisionErr: errors.New("provision boom")})
	RegisterModule(&trackingModule{id: "test.valfail", validateErr: errors.New("validate boom")})
	RegisterModule(&configurableMod{id: "test.cfgerr", configErr: errors.New("config boom")})

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("key: val"), &node); err != nil {
		t.Fatal(err)
	}
	ctx := NewAppContext(nil, "").WithModuleConfigs(map[string]yaml.Node{
		"test.cfgerr": *node.Content[0],
	})

	for _, id := range []string{"does.not.exist", "test.provfail", "test.valfail", "test.cfgerr"} {
		t.Run(id, func(t *testing.T) {
			if _, err := ctx.LoadModule(id); err == nil {
				t.Fatalf("LoadModule(%q) expected error", id)
			}
		})
	}
}

func TestAppContext_LoadModule_WithConfig(t *testing.T) {
	t.Cleanup(resetRegistry)

	configured := false
	receivedKey := ""
	RegisterModule(&configurableMod{
		id:          "test.cfgmod",
		configured:  &configured,
		receivedKey: &receivedKey,
	})

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("key: hello"), &node); err != nil {
		t.Fatal(err)
	}
	ctx := NewAppContext(nil, "").WithModuleConfigs(map[string]yaml.Node{
		"test.cfgmod": *node.Content[0],
	})

	if _, err := ctx.LoadModule("test.cfgmod"); err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	if !configured {
		t.Error("expected Configure to be called")
	}
	if receivedKey != "hello" {
		t.Errorf("receivedKey = %q, want %q", receivedKey, "hello")
	}
}

func TestAppContext_LoadModule_NoConfig(t *testing.T) {
	t.Cleanup(resetRegistry)

	configured := false
	RegisterModule(&configurableMod{id: "test.noconfig", configured: &configured})

	if _, err := NewAppContext(nil, "").LoadModule("test.noconfig"); err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	if configured {
		t.Error("Configure should not be called without a config entry")
	}
}

type trackingModule struct {
	id           ModuleID
	onProvision  func()
	onValidate   func()
	provisionErr error
	validateErr  error
}

func (m *trackingModule) ModuleInfo() ModuleInfo {
	cp := *m
	return ModuleInfo{
		ID:  m.id,
		New: func() Module { c := cp; return &c },
	}
}

func (m *trackingModule) Provision(_ *AppContext) error {
	if m.onProvision != nil {
		m.onProvision()
	}
	return m.provisionErr
}

func (m *trackingModule) Validate() error {
	if m.onValidate != nil {
		m.onValidate()
	}
	return m.validateErr
}

type configurableMod struct {
	id          ModuleID
	configured  *bool
	receivedKey *string
	configErr   error
}

func (m *configurableMod) ModuleInfo() ModuleInfo {
	cp := *m
	return ModuleInfo{
		ID:  m.id,
		New: func() Module { c := cp; return &c },
	}
}

func (m *configurableMod) Configure(node *yaml.Node) error {
	if m.configErr != nil {
		return m.configErr
	}
	if m.configured != nil {
		*m.configured = true
	}
	if m.receivedKey != nil {
		var parsed struct {
			Key string `yaml:"key"`
		}
		if err := node.Decode(&parsed); err != nil {
			return err
		}
		*m.receivedKey = parsed.Key
	}
	return nil
}
