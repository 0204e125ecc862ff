package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

const reportTimeout = 10 * time.Second

// progressReporter edits the run's progress message in place and posts
// notices as replies to the /forward command.
type progressReporter struct {
	responder Responder
	logger    *slog.Logger
	chatID    int64
	replyTo   int
	progress  message.Sent
}

var _ relay.ProgressSink = (*progressReporter)(nil)

func (r *progressReporter) Progress(ctx context.Context, p relay.Progress) {
	if r.progress.MessageID == 0 {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := r.responder.Edit(ctx, r.progress, progressText(p), nil); err != nil {
		r.logger.Debug("progress edit failed", "run_id", p.RunID, "error", err)
	}
}

func (r *progressReporter) Notice(ctx context.Context, text string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if _, err := r.responder.Reply(ctx, r.chatID, r.replyTo, text, nil); err != nil {
		r.logger.Debug("notice failed", "error", err)
	}
}

// detached keeps the final report deliverable after shutdown cancels the run.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
}
