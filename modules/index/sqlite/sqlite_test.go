package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/cron"
	"gopkg.in/yaml.v3"
)

func TestModuleProvisionRegistersServices(t *testing.T) {
	dir := t.TempDir()
	m := &Module{}

	var node yaml.Node
	raw := "path: " + filepath.Join(dir, "index.db") + "\nretention: 24h\nprune_schedule: \"*/5 * * * *\"\n"
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatal(err)
	}
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatalf("configure: %v", err)
	}

	app := core.NewAppContext(slog.Default(), dir)
	if err := m.Provision(app); err != nil {
		t.Fatalf("provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	idx, ok := core.ServiceAs[*Index](app, ServiceMessages)
	if !ok || idx != m.Index() {
		t.Fatalf("index service not registered")
	}

	job, ok := core.ServiceAs[*cron.IndexPruneJob](app, ServicePruneJob)
	if !ok {
		t.Fatal("prune job service not registered")
	}
	if job.Retention != 24*time.Hour {
		t.Errorf("Retention = %s, want 24h", job.Retention)
	}
	if job.Schedule() != "*/5 * * * *" {
		t.Errorf("Schedule = %q", job.Schedule())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("prune job run: %v", err)
	}
}

func TestModuleDefaults(t *testing.T) {
	var c Config
	c.defaults()

	if c.BusyTimeout != defaultBusyTimeout {
		t.Errorf("BusyTimeout = %d", c.BusyTimeout)
	}
	if c.Retention == nil || *c.Retention != defaultRetention {
		t.Errorf("Retention = %v", c.Retention)
	}
	if c.PruneSchedule != defaultPruneSchedule {
		t.Errorf("PruneSchedule = %q", c.PruneSchedule)
	}
	if !c.inMemory() {
		t.Error("empty path should be in-memory")
	}
}

func TestConfigValidate(t *testing.T) {
	neg := -time.Hour
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"negative busy timeout", Config{BusyTimeout: -1, PruneSchedule: "0 * * * *"}, "busy_timeout"},
		{"negative retention", Config{Retention: &neg, PruneSchedule: "0 * * * *"}, "retention"},
		{"bad schedule", Config{PruneSchedule: "every hour"}, "prune_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestModuleStopIdempotent(t *testing.T) {
	m := &Module{}
	if err := m.Provision(core.NewAppContext(slog.Default(), t.TempDir())); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
