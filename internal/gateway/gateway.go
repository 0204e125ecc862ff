package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/relayctl/internal/config"
	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/relay"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Service names.
const (
	ServiceDispatcher = "gateway.webhook_dispatcher"
	ServiceRegistry   = "metrics.registry"
	ServiceStatus     = "relay.settings"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// StatusSource reports the relay state served on /status.
type StatusSource interface {
	Snapshot() relay.Snapshot
}

// Gateway is the HTTP gateway module. It exposes health, status, metrics,
// and webhook endpoints. It is a leaf module, nothing imports it.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	dispatcher *WebhookDispatcher
	gatherer   prometheus.Gatherer
	startedAt  time.Time

	// Resolved lazily at Start() via service registry.
	status StatusSource
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The bearer token falls back to
// RELAY_GATEWAY_TOKEN.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.dispatcher = NewWebhookDispatcher(g.logger)
	g.dispatcher.maxBody = g.config.MaxBodyBytes

	if g.config.Auth.BearerToken == "" {
		if creds, ok := core.ServiceAs[*config.Credentials](ctx, config.ServiceCredentials); ok {
			g.config.Auth.BearerToken = creds.GatewayToken
		}
	}

	g.gatherer = prometheus.DefaultGatherer
	if reg, ok := core.ServiceAs[*prometheus.Registry](ctx, ServiceRegistry); ok {
		g.gatherer = reg
		if err := reg.Register(g.dispatcher.Collector()); err != nil {
			return fmt.Errorf("gateway: register metrics: %w", err)
		}
	}

	ctx.RegisterService(ServiceDispatcher, g.dispatcher)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if src, ok := core.ServiceAs[StatusSource](g.appCtx, ServiceStatus); ok {
		g.status = src
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway auth not configured, /status is disabled")
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
