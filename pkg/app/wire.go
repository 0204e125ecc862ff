package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flemzord/relayctl/internal/config"
	"github.com/flemzord/relayctl/internal/control"
	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/cron"
	"github.com/flemzord/relayctl/internal/gateway"
	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/internal/security"
	"github.com/flemzord/relayctl/modules/channel/telegram"
	"github.com/flemzord/relayctl/modules/index/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const telegramModule = "channel.telegram"

// tracerName scopes the spans the relay emits.
const tracerName = "github.com/flemzord/relayctl/internal/relay"

// controllerModule stops update intake, then the controller and any bulk
// run, before the index shuts down.
type controllerModule struct {
	intake     core.Stopper
	controller *control.Controller
}

func (m *controllerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "relay.controller"}
}

func (m *controllerModule) Stop(ctx context.Context) error {
	if err := m.intake.Stop(ctx); err != nil {
		return err
	}
	return m.controller.Stop(ctx)
}

// schedulerModule runs the background jobs modules published.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron.scheduler"}
}

func (m *schedulerModule) Start() error {
	return m.scheduler.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// auditModule closes the audit file after the controller has stopped.
type auditModule struct {
	file io.Closer
}

func (m *auditModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "security.audit"}
}

func (m *auditModule) Stop(_ context.Context) error {
	return m.file.Close()
}

// openAudit appends to the configured audit file. It returns nil when the
// trail is disabled.
func (r *Runtime) openAudit(cfg config.AuditConfig, redactor *security.Redactor) (*security.AuditLogger, error) {
	if cfg.Disabled {
		return nil, nil
	}
	path := cfg.Path
	if path == "" {
		path = filepath.Join(r.appCtx.DataDir, "audit.jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("app: audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("app: audit file: %w", err)
	}
	r.app.AppendModule("security.audit", &auditModule{file: f})
	r.logger.Info("audit trail enabled", "path", path)
	return security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: redactor}), nil
}

// wire publishes the shared services, loads the configured modules, builds
// the relay on top of the telegram platform, and appends the controller and
// scheduler to the lifecycle. Must be called before Start.
func (r *Runtime) wire(cfg *config.Config, creds *config.Credentials, redactor *security.Redactor) error {
	settings := relay.NewSettings(creds.OwnerID, cfg.Relay.AllowUsers...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.appCtx.RegisterService(config.ServiceCredentials, creds)
	r.appCtx.RegisterService(gateway.ServiceRegistry, reg)
	r.appCtx.RegisterService(gateway.ServiceStatus, settings)

	if err := r.app.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	mod, ok := r.app.Module(telegramModule)
	if !ok {
		return errors.New("app: the channel.telegram module is required")
	}
	tg, ok := mod.(*telegram.Telegram)
	if !ok {
		return fmt.Errorf("app: module %s has unexpected type %T", telegramModule, mod)
	}
	platform := tg.Platform()

	metrics := relay.NewMetrics(reg)
	replayer := relay.NewReplayer(platform, settings, relay.ReplayConfig{
		PacingDelay: cfg.Relay.PacingDelay,
		FloodBuffer: cfg.Relay.FloodBuffer,
		Logger:      r.logger.With("component", "replay"),
		Metrics:     metrics,
		Tracer:      r.telemetry.Tracer(tracerName),
	})
	live := relay.NewLiveRelay(platform, settings, r.logger.With("component", "live"), metrics)

	auditor, err := r.openAudit(cfg.Audit, redactor)
	if err != nil {
		return err
	}

	ctrlCfg := control.Config{
		Settings:  settings,
		Replayer:  replayer,
		Live:      live,
		Responder: platform,
		Logger:    r.logger.With("component", "control"),
	}
	if auditor != nil {
		ctrlCfg.Audit = auditor
	}
	controller, err := control.New(ctrlCfg)
	if err != nil {
		return err
	}
	tg.SetHandler(controller)
	r.controller = controller
	r.app.AppendModule("relay.controller", &controllerModule{intake: tg, controller: controller})

	if job, ok := core.ServiceAs[*cron.IndexPruneJob](r.appCtx, sqlite.ServicePruneJob); ok {
		scheduler := cron.NewScheduler(r.logger.With("component", "cron"))
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
		r.app.AppendModule("cron.scheduler", &schedulerModule{scheduler: scheduler})
	}

	r.logger.Info("relay wired",
		"owner", settings.Owner(),
		"authorized", len(settings.Users()),
		"pacing_delay", cfg.Relay.PacingDelay,
	)
	return nil
}
