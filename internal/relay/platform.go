package relay

import (
	"context"

	"github.com/flemzord/relayctl/pkg/message"
)

// Platform is the messaging backend the relay drives.
//
// FetchMessage returns nil, nil when the ID does not resolve to a message.
// Any method may return a *RateLimitError.
type Platform interface {
	FetchMessage(ctx context.Context, chatID int64, id int) (*message.Message, error)
	SendMessage(ctx context.Context, dest message.ChatRef, msg *message.Message) (message.Sent, error)
	PinMessage(ctx context.Context, chatID int64, messageID int) error
}

// ProgressSink receives run updates. Implementations must not block for long;
// the replay loop waits for them.
type ProgressSink interface {
	Progress(ctx context.Context, p Progress)
	Notice(ctx context.Context, text string)
}

type nopSink struct{}

func (nopSink) Progress(context.Context, Progress) {}

func (nopSink) Notice(context.Context, string) {}
