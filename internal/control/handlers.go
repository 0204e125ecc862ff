package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/internal/security"
	"github.com/flemzord/relayctl/pkg/message"
)

func (c *Controller) cmdStart(ctx context.Context, msg *message.Message, _ []string) {
	c.reply(ctx, msg, textStart)
}

func (c *Controller) cmdHelp(ctx context.Context, msg *message.Message, _ []string) {
	c.reply(ctx, msg, textHelp)
}

func parseUserID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (c *Controller) cmdAddUser(ctx context.Context, msg *message.Message, args []string) {
	id, ok := parseUserID(args)
	if !ok {
		c.reply(ctx, msg, usage("adduser", "<user_id>"))
		return
	}
	if !c.settings.AddUser(id) {
		c.reply(ctx, msg, fmt.Sprintf("User %d is already authorized.", id))
		return
	}
	c.logger.Info("user authorized", "user_id", id)
	c.audit(msg.ChatID, msg.SenderID, security.EventUserAdded, "adduser", strconv.FormatInt(id, 10))
	c.reply(ctx, msg, fmt.Sprintf("User %d authorized.", id))
}

func (c *Controller) cmdRemoveUser(ctx context.Context, msg *message.Message, args []string) {
	id, ok := parseUserID(args)
	if !ok {
		c.reply(ctx, msg, usage("removeuser", "<user_id>"))
		return
	}
	removed, err := c.settings.RemoveUser(id)
	switch {
	case errors.Is(err, relay.ErrOwnerRemoval):
		c.reply(ctx, msg, textOwnerRemoval)
	case !removed:
		c.reply(ctx, msg, fmt.Sprintf("User %d is not authorized.", id))
	default:
		c.logger.Info("user removed", "user_id", id)
		c.audit(msg.ChatID, msg.SenderID, security.EventUserRemoved, "removeuser", strconv.FormatInt(id, 10))
		c.reply(ctx, msg, fmt.Sprintf("User %d removed.", id))
	}
}

func (c *Controller) cmdListUsers(ctx context.Context, msg *message.Message, _ []string) {
	c.reply(ctx, msg, usersText(c.settings.Owner(), c.settings.Users()))
}

func parseRefArg(args []string) (message.ChatRef, bool) {
	if len(args) != 1 {
		return message.ChatRef{}, false
	}
	ref, err := message.ParseChatRef(args[0])
	if err != nil {
		return message.ChatRef{}, false
	}
	return ref, true
}

func (c *Controller) cmdSetDestination(ctx context.Context, msg *message.Message, args []string) {
	ref, ok := parseRefArg(args)
	if !ok {
		c.reply(ctx, msg, usage("setdestination", "<chat_id>[/<topic_id>]"))
		return
	}
	c.settings.SetDestination(ref)
	c.logger.Info("destination set", "destination", ref.String())
	c.audit(msg.ChatID, msg.SenderID, security.EventConfigChange, "setdestination", ref.String())
	c.reply(ctx, msg, refConfirmation("Destination", ref))
}

func (c *Controller) cmdAddSource(ctx context.Context, msg *message.Message, args []string) {
	ref, ok := parseRefArg(args)
	if !ok {
		c.reply(ctx, msg, usage("addsource", "<chat_id>[/<topic_id>]"))
		return
	}
	c.settings.SetSource(ref)
	c.logger.Info("source set", "source", ref.String())
	c.audit(msg.ChatID, msg.SenderID, security.EventConfigChange, "addsource", ref.String())
	c.reply(ctx, msg, refConfirmation("Source", ref))
}

func (c *Controller) cmdSetting(ctx context.Context, msg *message.Message, _ []string) {
	kb := settingsKeyboard(c.settings.Filters())
	if _, err := c.responder.Reply(ctx, msg.ChatID, msg.ID, textSettingsPrompt, kb); err != nil {
		c.logger.Error("sending settings keyboard failed", "error", err)
	}
}

func (c *Controller) cmdStatus(ctx context.Context, msg *message.Message, _ []string) {
	c.reply(ctx, msg, statusText(c.settings.Snapshot()))
}

func (c *Controller) cmdStartLive(ctx context.Context, msg *message.Message, _ []string) {
	if !c.settings.SetupComplete() {
		c.reply(ctx, msg, textSetupIncomplete)
		return
	}
	c.settings.SetLive(true)
	c.logger.Info("live relay enabled")
	c.audit(msg.ChatID, msg.SenderID, security.EventLiveToggle, "startlive", "on")
	c.reply(ctx, msg, textLiveOn)
}

func (c *Controller) cmdStopLive(ctx context.Context, msg *message.Message, _ []string) {
	c.settings.SetLive(false)
	c.logger.Info("live relay disabled")
	c.audit(msg.ChatID, msg.SenderID, security.EventLiveToggle, "stoplive", "off")
	c.reply(ctx, msg, textLiveOff)
}

func (c *Controller) cmdStop(ctx context.Context, msg *message.Message, _ []string) {
	c.settings.Cancel().Request()
	c.logger.Info("cancel requested", "running", c.settings.Running())
	c.audit(msg.ChatID, msg.SenderID, security.EventReplayCancel, "stop", "")
	c.reply(ctx, msg, textStopRequested)
}

func (c *Controller) cmdForward(ctx context.Context, msg *message.Message, args []string) {
	if len(args) != 1 {
		c.reply(ctx, msg, usage("forward", "<start_id>-<end_id>"))
		return
	}
	rng, err := relay.ParseRange(args[0])
	if err != nil {
		c.reply(ctx, msg, usage("forward", "<start_id>-<end_id>"))
		return
	}
	if err := c.replayer.Prepare(rng); err != nil {
		c.reply(ctx, msg, prepareErrorText(err))
		return
	}

	c.audit(msg.ChatID, msg.SenderID, security.EventReplayStart, "forward", rng.String())
	c.reply(ctx, msg, launchText(rng, c.settings.Filters()))
	progressMsg, err := c.responder.Reply(ctx, msg.ChatID, msg.ID, textInitialProgress, nil)
	if err != nil {
		c.logger.Error("posting progress message failed", "error", err)
	}

	reporter := &progressReporter{
		responder: c.responder,
		logger:    c.logger,
		chatID:    msg.ChatID,
		replyTo:   msg.ID,
		progress:  progressMsg,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.replayer.Run(c.runCtx, rng, reporter)
		if err != nil {
			c.logger.Warn("forward run did not start", "range", rng.String(), "error", err)
			reporter.Notice(c.runCtx, prepareErrorText(err))
			return
		}
		c.audit(msg.ChatID, msg.SenderID, security.EventReplayFinish, "forward",
			fmt.Sprintf("run=%s range=%s forwarded=%d processed=%d aborted=%t",
				res.RunID, rng.String(), res.Forwarded, res.Processed, res.Aborted))
	}()
}

func prepareErrorText(err error) string {
	switch {
	case errors.Is(err, relay.ErrSetupIncomplete):
		return textSetupIncomplete
	case errors.Is(err, relay.ErrInvalidRange):
		return textInvalidRange
	case errors.Is(err, relay.ErrRunInProgress):
		return textRunInProgress
	default:
		return "Forward failed: " + err.Error()
	}
}

func (c *Controller) handleCallback(ctx context.Context, cb *message.Callback) {
	if !c.settings.IsAuthorized(cb.SenderID) {
		c.audit(cb.ChatID, cb.SenderID, security.EventAuthFailure, "setting", cb.Data)
		c.answer(ctx, cb.ID, textDenied, true)
		return
	}
	category, err := relay.ParseCategory(cb.Data)
	if err != nil {
		c.answer(ctx, cb.ID, "Unknown option.", true)
		return
	}

	on := c.settings.ToggleFilter(category)
	c.logger.Info("filter toggled", "category", string(category), "enabled", on, "sender_id", cb.SenderID)
	c.audit(cb.ChatID, cb.SenderID, security.EventFilterToggle, "setting", fmt.Sprintf("%s=%s", category, onOff(on)))

	ref := message.Sent{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := c.responder.Edit(ctx, ref, textSettingsPrompt, settingsKeyboard(c.settings.Filters())); err != nil {
		c.logger.Warn("re-rendering settings keyboard failed", "error", err)
	}
	c.answer(ctx, cb.ID, fmt.Sprintf("%s %s", category.Label(), onOff(on)), false)
}

func (c *Controller) answer(ctx context.Context, id, text string, alert bool) {
	if err := c.responder.AnswerCallback(ctx, id, text, alert); err != nil {
		c.logger.Warn("answering callback failed", "error", err)
	}
}
