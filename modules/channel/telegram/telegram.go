package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flemzord/relayctl/internal/config"
	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/internal/gateway"
	"github.com/flemzord/relayctl/pkg/message"
	"gopkg.in/yaml.v3"
)

// serviceIndex is the message index published by the index module.
const serviceIndex = "index.messages"

// webhookSource is the {source} path segment of the webhook route.
const webhookSource = "telegram"

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// botNamer is implemented by handlers that match "/cmd@bot" addressing.
type botNamer interface {
	SetBotUsername(name string)
}

// commandMenu is implemented by handlers that advertise a command menu.
type commandMenu interface {
	Menu() []message.Command
}

// Telegram is the Bot API channel module.
type Telegram struct {
	config   Config
	client   *Client
	platform *Platform
	logger   *slog.Logger
	appCtx   *core.AppContext
	handler  UpdateHandler
	botUser  *User

	// Set during Start() depending on mode.
	poller          *Poller
	webhookReceiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner. Token, API URL and probe chat
// fall back to the process credentials.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.appCtx = ctx
	t.logger = ctx.Logger

	if creds, ok := core.ServiceAs[*config.Credentials](ctx, config.ServiceCredentials); ok {
		if t.config.Token == "" {
			t.config.Token = creds.BotToken
		}
		if creds.APIURL != "" && t.config.APIURL == defaultAPIURL {
			t.config.APIURL = creds.APIURL
		}
		if t.config.ProbeChat == 0 {
			t.config.ProbeChat = creds.OwnerID
		}
	}
	if t.config.DisableProbe {
		t.config.ProbeChat = 0
	}

	t.client = NewClient(t.config.Token, t.config.APIURL)
	t.platform = NewPlatform(
		t.client,
		NewClient(t.config.Token, t.config.APIURL, WithoutRateLimitRetry()),
		nil,
		t.config.ProbeChat,
		t.logger,
	)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required (set RELAY_BOT_TOKEN)")
	}
	return t.config.validate()
}

// Platform returns the relay/controller adapter. Valid after Provision.
func (t *Telegram) Platform() *Platform { return t.platform }

// SetHandler installs the consumer of inbound updates. Must be called before Start.
func (t *Telegram) SetHandler(h UpdateHandler) { t.handler = h }

// BotUser returns the authenticated bot, or nil before Start.
func (t *Telegram) BotUser() *User { return t.botUser }

// Start implements core.Starter. It validates the bot token, binds the
// message index, then starts either polling or webhook mode.
func (t *Telegram) Start() error {
	if t.handler == nil {
		return errors.New("telegram: handler not set, call SetHandler before Start")
	}

	ctx := context.Background()

	user, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)
	if n, ok := t.handler.(botNamer); ok {
		n.SetBotUsername(user.Username)
	}
	if m, ok := t.handler.(commandMenu); ok {
		t.publishMenu(ctx, m.Menu())
	}

	index, ok := core.ServiceAs[MessageIndex](t.appCtx, serviceIndex)
	if !ok {
		t.logger.Warn("telegram: no message index loaded, replays can only probe")
	}
	t.platform.index = index

	d := &dispatcher{index: index, handler: t.handler, logger: t.logger}

	switch t.config.Mode {
	case modePolling:
		// A webhook left over from an earlier run blocks getUpdates.
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to clear webhook before polling", "error", err)
		}
		t.poller = NewPoller(t.client, d.dispatch, t.logger, t.config)
		t.poller.Start()
		t.logger.Info("telegram polling started",
			"timeout", t.config.PollingTimeout,
		)

	case modeWebhook:
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without secret_token, " +
				"consider setting webhook_secret for production deployments")
		}
		t.webhookReceiver = NewWebhookReceiver(d.dispatch, t.config.WebhookSecret)

		if err := t.registerWebhook(); err != nil {
			return err
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 30 * time.Second
		err := backoff.Retry(func() error {
			return t.client.SetWebhook(ctx, SetWebhookRequest{
				URL:            t.config.WebhookURL,
				SecretToken:    t.config.WebhookSecret,
				AllowedUpdates: t.config.AllowedUpdates,
			})
		}, backoff.WithContext(bo, ctx))
		if err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured",
			"url", t.config.WebhookURL,
		)
	}

	return nil
}

func (t *Telegram) publishMenu(ctx context.Context, menu []message.Command) {
	commands := make([]BotCommand, 0, len(menu))
	for _, c := range menu {
		commands = append(commands, BotCommand{Command: c.Name, Description: c.Description})
	}
	if err := t.client.SetMyCommands(ctx, commands); err != nil {
		t.logger.Warn("telegram: setMyCommands failed", "error", err)
	}
}

// registerWebhook resolves the gateway webhook dispatcher from the service
// registry and registers the WebhookReceiver as a handler.
func (t *Telegram) registerWebhook() error {
	dispatcher, ok := core.ServiceAs[*gateway.WebhookDispatcher](t.appCtx, gateway.ServiceDispatcher)
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher service not found (is the gateway module loaded?)")
	}

	// Telegram authenticates with its own secret header, checked by the
	// receiver, so no HMAC secret is registered.
	dispatcher.Register(webhookSource, t.webhookReceiver, "")
	return nil
}

// Stop implements core.Stopper. Intake stops once; later calls are no-ops.
func (t *Telegram) Stop(ctx context.Context) error {
	switch {
	case t.poller != nil:
		t.logger.Info("telegram channel stopping")
		t.poller.Stop()
		t.poller = nil
	case t.webhookReceiver != nil:
		t.logger.Info("telegram channel stopping")
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
		t.webhookReceiver = nil
	}
	return nil
}
