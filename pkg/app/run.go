// Package app builds and runs the relayctl process: configuration,
// credentials, logging, telemetry, modules, and the relay controller.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/relayctl/internal/config"
	"github.com/flemzord/relayctl/internal/control"
	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/security"
	"github.com/flemzord/relayctl/internal/telemetry"
)

// ShutdownTimeout bounds how long Stop waits for modules and span export.
const ShutdownTimeout = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, the standard locations are searched and the embedded
	// default is used when none exists.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Env replaces the process environment when reading credentials.
	Env map[string]string
}

// Runtime is a fully wired, not yet started application.
type Runtime struct {
	app        *core.App
	appCtx     *core.AppContext
	logger     *slog.Logger
	telemetry  *telemetry.Provider
	controller *control.Controller
	configPath string
}

// Run builds the runtime, starts it, and blocks until SIGINT or SIGTERM.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		_ = rt.telemetry.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	rt.logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := rt.Stop(stopCtx); err != nil {
		return err
	}
	rt.logger.Info("shutdown complete")
	return nil
}

// Build loads configuration and credentials, sets up logging and tracing,
// loads every configured module, and wires the relay controller.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	cfg, path, err := config.LoadOrDefault(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var creds *config.Credentials
	if params.Env != nil {
		creds, err = config.LoadCredentialsFrom(params.Env)
	} else {
		creds, err = config.LoadCredentials()
	}
	if err != nil {
		return nil, err
	}

	logger, redactor := newLogger(params, creds)
	if path == "" {
		logger.Info("no configuration file found, using built-in defaults")
	} else {
		logger.Info("configuration loaded", "path", path)
	}

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: params.Version,
	})
	if err != nil {
		return nil, err
	}
	if tp.Exporting() {
		logger.Info("trace export enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	rt := &Runtime{
		app:        core.NewApp(appCtx),
		appCtx:     appCtx,
		logger:     logger,
		telemetry:  tp,
		configPath: path,
	}

	if err := rt.wire(cfg, creds, redactor); err != nil {
		rt.app.Discard()
		_ = tp.Shutdown(context.Background())
		return nil, err
	}
	return rt, nil
}

// Start starts every module in load order.
func (r *Runtime) Start() error {
	if err := r.app.Start(); err != nil {
		return fmt.Errorf("app: start: %w", err)
	}
	r.logger.Info("relayctl started")
	return nil
}

// Stop stops every module in reverse order and flushes pending spans.
func (r *Runtime) Stop(ctx context.Context) error {
	r.app.Stop()
	return r.telemetry.Shutdown(ctx)
}

// Controller returns the relay controller.
func (r *Runtime) Controller() *control.Controller { return r.controller }

// Logger returns the redacting process logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// ConfigPath returns the configuration file in use, "" for the built-in one.
func (r *Runtime) ConfigPath() string { return r.configPath }

// newLogger wraps a text handler in a redacting handler so credential
// values never reach the log output.
func newLogger(params RunParams, creds *config.Credentials) (*slog.Logger, *security.Redactor) {
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	redactor.AddLiteral(creds.Secrets()...)

	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: params.LogLevel})
	return slog.New(security.NewRedactingHandler(inner, redactor)), redactor
}

// ParseLogLevel maps a level name to slog.Level.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/relayctl if set, otherwise ~/.local/share/relayctl.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "relayctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "relayctl")
}
