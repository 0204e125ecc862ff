package telegram

import (
	"fmt"
	"time"

	"github.com/flemzord/relayctl/pkg/message"
)

// inbound is a converted update. Edited messages refresh the index but are
// not handed to the update handler.
type inbound struct {
	update message.Update
	edited bool
}

// convertInbound transforms a Telegram Update into a platform-agnostic update.
func convertInbound(update *Update) (inbound, error) {
	if cq := update.CallbackQuery; cq != nil {
		cb := &message.Callback{
			ID:       cq.ID,
			SenderID: cq.From.ID,
			Data:     cq.Data,
		}
		if cq.Message != nil {
			cb.ChatID = cq.Message.Chat.ID
			cb.MessageID = cq.Message.MessageID
		}
		return inbound{update: message.Update{Callback: cb}}, nil
	}

	msg, edited := extractMessage(update)
	if msg == nil {
		return inbound{}, fmt.Errorf("telegram: update %d contains no message", update.UpdateID)
	}
	return inbound{update: message.Update{Message: convertMessage(msg)}, edited: edited}, nil
}

// extractMessage returns the actual message from an Update and whether it
// is an edit of an earlier one.
func extractMessage(update *Update) (*Message, bool) {
	switch {
	case update.Message != nil:
		return update.Message, false
	case update.ChannelPost != nil:
		return update.ChannelPost, false
	case update.EditedMessage != nil:
		return update.EditedMessage, true
	case update.EditedChannelPost != nil:
		return update.EditedChannelPost, true
	}
	return nil, false
}

// convertMessage classifies a Telegram message into the relay's media model.
func convertMessage(msg *Message) *message.Message {
	out := &message.Message{
		ChatID:   msg.Chat.ID,
		ID:       msg.MessageID,
		ThreadID: threadOf(msg),
		Text:     msg.Text,
	}
	if msg.Date > 0 {
		out.Date = time.Unix(int64(msg.Date), 0).UTC()
	}
	if out.Text == "" {
		out.Text = msg.Caption
	}
	switch {
	case msg.From != nil:
		out.SenderID = msg.From.ID
	case msg.SenderChat != nil:
		out.SenderID = msg.SenderChat.ID
	}

	// Videos, audio and animations are files too; keep their document
	// attributes so the document categories see them as the platform does.
	switch {
	case msg.Video != nil:
		out.Video = true
		out.Document = videoDocument(msg.Video)
	case msg.VideoNote != nil:
		out.Video = true
		out.Document = videoDocument(msg.VideoNote)
	case msg.Animation != nil:
		out.Video = true
		out.Document = videoDocument(msg.Animation)
	case msg.Audio != nil:
		out.Audio = true
		out.Document = audioDocument(msg.Audio)
	case msg.Voice != nil:
		out.Audio = true
		out.Document = audioDocument(msg.Voice)
	case msg.Document != nil:
		out.Document = &message.Document{MIMEType: msg.Document.MIMEType, FileName: msg.Document.FileName}
	case len(msg.Photo) > 0:
		out.Photo = true
	case msg.Sticker != nil, msg.Location != nil, msg.Contact != nil, msg.Poll != nil:
		out.Other = true
	}
	return out
}

// threadOf resolves the thread a message belongs to: the forum topic when
// set, otherwise the message it replies to.
func threadOf(msg *Message) int {
	if msg.MessageThreadID != 0 {
		return msg.MessageThreadID
	}
	if msg.ReplyToMessage != nil {
		return msg.ReplyToMessage.MessageID
	}
	return 0
}

func videoDocument(v *Video) *message.Document {
	mime := v.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	return &message.Document{MIMEType: mime, FileName: v.FileName}
}

func audioDocument(a *Audio) *message.Document {
	return &message.Document{MIMEType: a.MIMEType, FileName: a.FileName}
}
