package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/relayctl/internal/core"
)

// Validate checks the structural validity of a Config: the version field,
// at least one module, every module ID registered, and the relay section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateRelay(cfg.Relay)...)

	return errors.Join(errs...)
}

func validateRelay(r RelayConfig) []error {
	var errs []error
	if r.PacingDelay < 0 {
		errs = append(errs, fmt.Errorf("config: relay.pacing_delay must not be negative, got %s", r.PacingDelay))
	}
	if r.FloodBuffer < 0 {
		errs = append(errs, fmt.Errorf("config: relay.flood_buffer must not be negative, got %s", r.FloodBuffer))
	}
	for i, id := range r.AllowUsers {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("config: relay.allow_users[%d]: invalid user id %d", i, id))
		}
	}
	return errs
}
