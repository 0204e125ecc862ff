package sqlite

import (
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"
)

const (
	defaultBusyTimeout   = 5000
	defaultRetention     = 30 * 24 * time.Hour
	defaultPruneSchedule = "0 * * * *"
	memoryPath           = ":memory:"
)

// Config holds the message index configuration.
type Config struct {
	// Path is the database file. Empty keeps the index in memory.
	Path string `yaml:"path"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Retention is how long observed messages are kept. Zero disables pruning.
	Retention *time.Duration `yaml:"retention"`

	// PruneSchedule is the 5-field cron expression of the prune job.
	PruneSchedule string `yaml:"prune_schedule"`
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.Retention == nil {
		r := defaultRetention
		c.Retention = &r
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = defaultPruneSchedule
	}
}

func (c *Config) inMemory() bool {
	return c.Path == "" || c.Path == memoryPath
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Retention != nil && *c.Retention < 0 {
		return fmt.Errorf("sqlite: retention must be non-negative, got %s", *c.Retention)
	}
	parser := robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)
	if _, err := parser.Parse(c.PruneSchedule); err != nil {
		return fmt.Errorf("sqlite: prune_schedule: %w", err)
	}
	return nil
}
