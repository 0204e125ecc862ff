// Package control turns inbound updates into relay operations. It parses
// slash commands, enforces the allow-list, renders replies, and runs bulk
// replays in the background while further updates keep flowing.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/internal/security"
	"github.com/flemzord/relayctl/pkg/message"
)

// Responder sends the controller's replies back to the chat.
type Responder interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string, kb message.Keyboard) (message.Sent, error)
	Edit(ctx context.Context, ref message.Sent, text string, kb message.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Auditor records access decisions and relay state changes.
type Auditor interface {
	Log(event security.AuditEvent)
}

// Config wires a Controller.
type Config struct {
	Settings  *relay.Settings
	Replayer  *relay.Replayer
	Live      *relay.LiveRelay
	Responder Responder
	Logger    *slog.Logger

	// Audit is optional.
	Audit Auditor

	// BotUsername filters "/cmd@name" forms addressed to other bots.
	BotUsername string
}

// Controller dispatches updates. HandleUpdate must be called from a single
// goroutine; bulk runs execute on their own.
type Controller struct {
	settings  *relay.Settings
	replayer  *relay.Replayer
	live      *relay.LiveRelay
	responder Responder
	logger    *slog.Logger
	auditor   Auditor
	botName   atomic.Value // string
	commands  map[string]command

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New validates cfg and builds a Controller.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Settings == nil {
		errs = append(errs, errors.New("control: settings are required"))
	}
	if cfg.Replayer == nil {
		errs = append(errs, errors.New("control: replayer is required"))
	}
	if cfg.Live == nil {
		errs = append(errs, errors.New("control: live relay is required"))
	}
	if cfg.Responder == nil {
		errs = append(errs, errors.New("control: responder is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		settings:  cfg.Settings,
		replayer:  cfg.Replayer,
		live:      cfg.Live,
		responder: cfg.Responder,
		logger:    cfg.Logger,
		auditor:   cfg.Audit,
		runCtx:    ctx,
		cancelRun: cancel,
	}
	c.botName.Store(cfg.BotUsername)
	c.commands = c.commandTable()
	return c, nil
}

// SetBotUsername updates the name "/cmd@name" forms must address. The
// channel calls it once it has authenticated.
func (c *Controller) SetBotUsername(name string) { c.botName.Store(name) }

func (c *Controller) botUsername() string {
	name, _ := c.botName.Load().(string)
	return name
}

// HandleUpdate processes one inbound event.
func (c *Controller) HandleUpdate(ctx context.Context, u message.Update) {
	switch {
	case u.Callback != nil:
		c.handleCallback(ctx, u.Callback)
	case u.Message != nil:
		// Source posts are relayed even when they read like commands.
		c.live.Handle(ctx, u.Message)
		if u.Message.IsCommand() {
			c.handleCommand(ctx, u.Message)
		}
	}
}

// Stop cancels a bulk run in flight and waits for it to report, or for ctx.
func (c *Controller) Stop(ctx context.Context) error {
	c.cancelRun()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until no bulk run is executing.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) reply(ctx context.Context, msg *message.Message, text string) {
	if _, err := c.responder.Reply(ctx, msg.ChatID, msg.ID, text, nil); err != nil {
		c.logger.Error("reply failed", "chat_id", msg.ChatID, "error", err)
	}
}

func (c *Controller) audit(chatID, senderID int64, typ security.EventType, command, detail string) {
	if c.auditor == nil {
		return
	}
	c.auditor.Log(security.AuditEvent{
		Type:     typ,
		ChatID:   chatID,
		SenderID: senderID,
		Command:  command,
		Detail:   detail,
	})
}
