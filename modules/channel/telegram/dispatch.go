package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flemzord/relayctl/pkg/message"
)

// UpdateHandler consumes converted updates. Calls arrive one at a time.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u message.Update)
}

// MessageIndex stores observed messages for later replay lookups.
type MessageIndex interface {
	Record(ctx context.Context, msg *message.Message) error
	Lookup(ctx context.Context, chatID int64, id int) (*message.Message, bool, error)
}

// dispatcher records every observed message and hands fresh updates on.
// Webhook requests may arrive concurrently; mu keeps handler calls serial.
type dispatcher struct {
	mu      sync.Mutex
	index   MessageIndex
	handler UpdateHandler
	logger  *slog.Logger
}

func (d *dispatcher) dispatch(ctx context.Context, update *Update) {
	in, err := convertInbound(update)
	if err != nil {
		d.logger.Debug("skipping update", "update_id", update.UpdateID, "reason", err)
		return
	}

	if msg := in.update.Message; msg != nil && d.index != nil {
		if err := d.index.Record(ctx, msg); err != nil {
			d.logger.Warn("failed to index message",
				"chat_id", msg.ChatID,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	if in.edited || d.handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler.HandleUpdate(ctx, in.update)
}
