package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/kardianos/service"
)

// ServiceName is the name relayctl registers with the system service manager.
const ServiceName = "relayctl"

// program adapts Runtime to the service manager's start/stop callbacks.
type program struct {
	params RunParams
	rt     *Runtime
}

var _ service.Interface = (*program)(nil)

// Start must not block; modules run on their own goroutines.
func (p *program) Start(_ service.Service) error {
	rt, err := Build(context.Background(), p.params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		_ = rt.telemetry.Shutdown(context.Background())
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.rt == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return p.rt.Stop(ctx)
}

// ServiceConfig describes the relayctl unit. The installed unit runs
// "relayctl service run" with the same configuration file.
func ServiceConfig(params RunParams) (*service.Config, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("app: resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	return &service.Config{
		Name:        ServiceName,
		DisplayName: "relayctl",
		Description: "Telegram chat-to-chat relay controller",
		Arguments:   args,
	}, nil
}

// NewService wraps the runtime in a system service.
func NewService(params RunParams) (service.Service, error) {
	cfg, err := ServiceConfig(params)
	if err != nil {
		return nil, err
	}
	s, err := service.New(&program{params: params}, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: service: %w", err)
	}
	return s, nil
}

// ControlService performs install, uninstall, start, stop, or restart.
func ControlService(s service.Service, action string) error {
	if !slices.Contains(service.ControlAction[:], action) {
		return fmt.Errorf("app: unknown service action %q (valid: %v)", action, service.ControlAction)
	}
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("app: service %s: %w", action, err)
	}
	return nil
}
