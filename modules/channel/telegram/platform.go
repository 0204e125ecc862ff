package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/relayctl/internal/control"
	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

var (
	_ relay.Platform    = (*Platform)(nil)
	_ control.Responder = (*Platform)(nil)
)

// Platform adapts the Bot API to the relay and the controller.
//
// The Bot API cannot read history, so FetchMessage answers from the index of
// observed messages and, on a miss, probes the ID by forwarding it to
// probeChat and deleting the copy. Probed messages carry no thread.
type Platform struct {
	chat      *Client // retries 429 itself
	relay     *Client // surfaces 429 as relay.RateLimitError
	index     MessageIndex
	probeChat int64
	logger    *slog.Logger
}

// NewPlatform creates a Platform. index may be nil, and probeChat 0
// disables probing.
func NewPlatform(chat, relayClient *Client, index MessageIndex, probeChat int64, logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{chat: chat, relay: relayClient, index: index, probeChat: probeChat, logger: logger}
}

// FetchMessage implements relay.Platform.
func (p *Platform) FetchMessage(ctx context.Context, chatID int64, id int) (*message.Message, error) {
	if p.index != nil {
		msg, ok, err := p.index.Lookup(ctx, chatID, id)
		switch {
		case err != nil:
			p.logger.Warn("index lookup failed, probing", "chat_id", chatID, "message_id", id, "error", err)
		case ok:
			return msg, nil
		}
	}
	if p.probeChat == 0 {
		return nil, nil
	}

	fwd, err := p.relay.ForwardMessage(ctx, ForwardMessageRequest{
		ChatID:              p.probeChat,
		FromChatID:          chatID,
		MessageID:           id,
		DisableNotification: true,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, relayError(err)
	}

	if err := p.relay.DeleteMessage(ctx, p.probeChat, fwd.MessageID); err != nil {
		p.logger.Debug("failed to delete probe message", "message_id", fwd.MessageID, "error", err)
	}

	msg := convertMessage(fwd)
	msg.ChatID = chatID
	msg.ID = id
	msg.ThreadID = 0
	msg.SenderID = 0
	msg.Date = time.Time{}
	p.logger.Debug("probed message has unknown thread", "chat_id", chatID, "message_id", id)
	return msg, nil
}

// SendMessage implements relay.Platform with copyMessage, so the copy
// carries no forwarded-from header. A destination thread is set both as the
// forum topic and as the replied-to message, which covers reply threads.
func (p *Platform) SendMessage(ctx context.Context, dest message.ChatRef, msg *message.Message) (message.Sent, error) {
	req := CopyMessageRequest{
		ChatID:          dest.ChatID,
		FromChatID:      msg.ChatID,
		MessageID:       msg.ID,
		MessageThreadID: dest.ThreadID,
	}
	if dest.ThreadID != 0 {
		req.ReplyParameters = &ReplyParameters{MessageID: dest.ThreadID, AllowSendingWithoutReply: true}
	}
	res, err := p.relay.CopyMessage(ctx, req)
	if err != nil {
		return message.Sent{}, relayError(err)
	}
	return message.Sent{ChatID: dest.ChatID, MessageID: res.MessageID}, nil
}

// PinMessage implements relay.Platform. The pin is silent.
func (p *Platform) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	return relayError(p.relay.PinChatMessage(ctx, PinChatMessageRequest{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	}))
}

// Reply implements control.Responder.
func (p *Platform) Reply(ctx context.Context, chatID int64, replyTo int, text string, kb message.Keyboard) (message.Sent, error) {
	sent, err := p.chat.SendMessage(ctx, SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ReplyToMessageID:      replyTo,
		DisableWebPagePreview: true,
		ReplyMarkup:           toMarkup(kb),
	})
	if err != nil {
		return message.Sent{}, err
	}
	return message.Sent{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// Edit implements control.Responder. Editing to identical content is not an error.
func (p *Platform) Edit(ctx context.Context, ref message.Sent, text string, kb message.Keyboard) error {
	_, err := p.chat.EditMessageText(ctx, EditMessageTextRequest{
		ChatID:                ref.ChatID,
		MessageID:             ref.MessageID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyMarkup:           toMarkup(kb),
	})
	if err != nil && apiErrorContains(err, "message is not modified") {
		return nil
	}
	return err
}

// AnswerCallback implements control.Responder.
func (p *Platform) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return p.chat.AnswerCallbackQuery(ctx, AnswerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}

func toMarkup(kb message.Keyboard) *InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// relayError turns a 429 into a relay.RateLimitError.
func relayError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		return err
	}
	wait := time.Duration(apiErr.RetryAfter) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return &relay.RateLimitError{RetryAfter: wait, Err: err}
}

var notFoundDescriptions = []string{
	"message to forward not found",
	"message to copy not found",
	"message_id_invalid",
	"message not found",
}

func isNotFound(err error) bool {
	for _, d := range notFoundDescriptions {
		if apiErrorContains(err, d) {
			return true
		}
	}
	return false
}

func apiErrorContains(err error, substr string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Description), substr)
}
