package control

import (
	"context"
	"strings"

	"github.com/flemzord/relayctl/internal/security"
	"github.com/flemzord/relayctl/pkg/message"
)

type access int

const (
	public access = iota
	authorized
	ownerOnly
)

type command struct {
	access  access
	handler func(ctx context.Context, msg *message.Message, args []string)
}

func (c *Controller) commandTable() map[string]command {
	return map[string]command{
		"start":          {public, c.cmdStart},
		"help":           {authorized, c.cmdHelp},
		"adduser":        {ownerOnly, c.cmdAddUser},
		"removeuser":     {ownerOnly, c.cmdRemoveUser},
		"listusers":      {ownerOnly, c.cmdListUsers},
		"setdestination": {authorized, c.cmdSetDestination},
		"addsource":      {authorized, c.cmdAddSource},
		"setting":        {authorized, c.cmdSetting},
		"status":         {authorized, c.cmdStatus},
		"startlive":      {authorized, c.cmdStartLive},
		"stoplive":       {authorized, c.cmdStopLive},
		"stop":           {authorized, c.cmdStop},
		"forward":        {authorized, c.cmdForward},
	}
}

// parseCommand splits "/name@bot arg1 arg2". ok is false for text that is
// not a command or is addressed to another bot.
func parseCommand(text, botName string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if botName != "" && !strings.EqualFold(target, botName) {
			return "", nil, false
		}
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (c *Controller) handleCommand(ctx context.Context, msg *message.Message) {
	name, args, ok := parseCommand(msg.Text, c.botUsername())
	if !ok {
		return
	}
	cmd, known := c.commands[name]
	if !known {
		return
	}

	switch cmd.access {
	case authorized:
		if !c.settings.IsAuthorized(msg.SenderID) {
			c.deny(ctx, msg, name, textDenied)
			return
		}
	case ownerOnly:
		if !c.settings.IsAuthorized(msg.SenderID) {
			c.deny(ctx, msg, name, textDenied)
			return
		}
		if !c.settings.IsOwner(msg.SenderID) {
			c.deny(ctx, msg, name, textOwnerOnly)
			return
		}
	}

	c.logger.Debug("command", "command", name, "sender_id", msg.SenderID, "chat_id", msg.ChatID)
	cmd.handler(ctx, msg, args)
}

func (c *Controller) deny(ctx context.Context, msg *message.Message, name, text string) {
	c.logger.Warn("command denied", "command", name, "sender_id", msg.SenderID)
	c.audit(msg.ChatID, msg.SenderID, security.EventAuthFailure, name, "")
	c.reply(ctx, msg, text)
}

// Menu lists the commands to advertise in the client's command menu.
func (c *Controller) Menu() []message.Command {
	return []message.Command{
		{Name: "start", Description: "Greeting"},
		{Name: "help", Description: "List commands"},
		{Name: "status", Description: "Show the current configuration"},
		{Name: "setdestination", Description: "Set where messages go"},
		{Name: "addsource", Description: "Set where messages come from"},
		{Name: "setting", Description: "Toggle message type filters"},
		{Name: "forward", Description: "Relay a range of past messages"},
		{Name: "stop", Description: "Cancel a running forward"},
		{Name: "startlive", Description: "Relay new messages as they arrive"},
		{Name: "stoplive", Description: "Stop relaying new messages"},
		{Name: "adduser", Description: "Authorize a user"},
		{Name: "removeuser", Description: "Revoke a user"},
		{Name: "listusers", Description: "List authorized users"},
	}
}
