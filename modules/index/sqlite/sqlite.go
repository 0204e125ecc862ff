// Package sqlite implements the observed-message index as a SQLite-backed
// module. It uses modernc.org/sqlite (pure Go, no CGO).
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/cron"
	"gopkg.in/yaml.v3"
)

// Service names published during Provision.
const (
	ServiceMessages = "index.messages"
	ServicePruneJob = "index.prune_job"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ cron.Pruner       = (*Index)(nil)
)

// Module owns the index database for the lifetime of the app.
type Module struct {
	config Config
	index  *Index
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "index.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	idx, err := Open(context.Background(), m.config.Path, m.config.BusyTimeout)
	if err != nil {
		return err
	}
	m.index = idx

	ctx.RegisterService(ServiceMessages, idx)
	ctx.RegisterService(ServicePruneJob, &cron.IndexPruneJob{
		Index:        idx,
		Retention:    *m.config.Retention,
		ScheduleExpr: m.config.PruneSchedule,
		Logger:       ctx.Logger,
	})

	where := m.config.Path
	if m.config.inMemory() {
		where = memoryPath
	}
	m.logger.Info("sqlite: message index ready", "path", where)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.index == nil {
		return errors.New("sqlite: index not open")
	}
	return m.index.Ping(context.Background())
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.index == nil {
		return nil
	}
	err := m.index.Close()
	m.index = nil
	return err
}

// Index returns the open index, or nil before Provision.
func (m *Module) Index() *Index { return m.index }
