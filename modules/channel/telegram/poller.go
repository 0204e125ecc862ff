package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxPollingPause = 30 * time.Second

// Poller implements long-polling for receiving Telegram updates.
type Poller struct {
	client   *Client
	dispatch func(context.Context, *Update)
	logger   *slog.Logger
	config   Config
	backoff  *backoff.ExponentialBackOff

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a new Poller.
func NewPoller(client *Client, dispatch func(context.Context, *Update), logger *slog.Logger, config Config) *Poller {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = maxPollingPause
	bo.MaxElapsedTime = 0

	return &Poller{
		client:   client,
		dispatch: dispatch,
		logger:   logger,
		config:   config,
		backoff:  bo,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop signals the polling loop to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	if p.cancel != nil {
		<-p.done
	}
}

// loop runs the long-polling loop until the context is cancelled. Failed
// polls back off exponentially up to maxPollingPause.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	var offset int

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			wait := p.backoff.NextBackOff()
			p.logger.Error("polling getUpdates failed", "error", err, "retry_in", wait)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		p.backoff.Reset()

		for i := range updates {
			offset = updates[i].UpdateID + 1
			p.dispatch(ctx, &updates[i])
		}
	}
}
