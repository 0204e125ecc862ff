package relay

import (
	"context"
	"log/slog"

	"github.com/flemzord/relayctl/pkg/message"
)

// LiveRelay forwards new source messages as they arrive.
type LiveRelay struct {
	platform Platform
	settings *Settings
	logger   *slog.Logger
	metrics  *Metrics
}

// NewLiveRelay creates a LiveRelay. logger and metrics may be nil.
func NewLiveRelay(platform Platform, settings *Settings, logger *slog.Logger, metrics *Metrics) *LiveRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveRelay{platform: platform, settings: settings, logger: logger, metrics: metrics}
}

// Handle relays msg when live relay is on and msg belongs to the source
// scope and an enabled category. It makes a single attempt and reports
// whether the message was sent. Failures are logged, never returned.
func (l *LiveRelay) Handle(ctx context.Context, msg *message.Message) bool {
	if msg == nil || !l.settings.Live() {
		return false
	}
	source := l.settings.Source()
	if source.IsZero() || msg.ChatID != source.ChatID {
		return false
	}
	if !InScope(source, msg) {
		return false
	}
	category, ok := l.settings.Filters().Match(msg)
	if !ok {
		return false
	}

	dest := l.settings.Destination()
	if dest.IsZero() {
		return false
	}
	sent, err := l.platform.SendMessage(ctx, dest, msg)
	if err != nil {
		l.metrics.incError(pathLive, "send")
		l.logger.Error("live relay failed", "message_id", msg.ID, "error", err)
		return false
	}
	l.metrics.incForwarded(pathLive, category)
	l.logger.Info("live relayed message",
		"message_id", msg.ID,
		"category", string(category),
		"source", source.String(),
		"destination", dest.String(),
		"sent_id", sent.MessageID,
	)
	return true
}
