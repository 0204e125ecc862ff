package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/flemzord/relayctl/pkg/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMalformedRange is returned by ParseRange for text that is not "<start>-<end>".
var ErrMalformedRange = errors.New("relay: range must look like <start>-<end>")

var rangePattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// Range is a closed interval of message IDs.
type Range struct {
	Start int
	End   int
}

// ParseRange parses "<start>-<end>". It does not check ordering; see Validate.
func ParseRange(s string) (Range, error) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrMalformedRange, err)
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrMalformedRange, err)
	}
	return Range{Start: start, End: end}, nil
}

// Validate rejects ranges that start after they end or below ID 1.
func (r Range) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d exceeds end %d", ErrInvalidRange, r.Start, r.End)
	}
	if r.Start < 1 {
		return fmt.Errorf("%w: message ids start at 1", ErrInvalidRange)
	}
	return nil
}

// Total is the number of IDs in the range.
func (r Range) Total() int { return r.End - r.Start + 1 }

func (r Range) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Result summarizes a finished run.
type Result struct {
	RunID       string
	Range       Range
	Processed   int
	Forwarded   int
	Aborted     bool
	RateLimited int
	Errors      int
	Duration    time.Duration
}

// ReplayConfig tunes a Replayer. Zero values get defaults.
type ReplayConfig struct {
	PacingDelay time.Duration
	FloodBuffer time.Duration
	Logger      *slog.Logger
	Metrics     *Metrics
	Tracer      trace.Tracer

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// NewRunID names each run.
	NewRunID func() string
}

const (
	defaultPacingDelay = 1500 * time.Millisecond
	defaultFloodBuffer = 2 * time.Second
)

func (c *ReplayConfig) defaults() {
	if c.PacingDelay == 0 {
		c.PacingDelay = defaultPacingDelay
	}
	if c.FloodBuffer == 0 {
		c.FloodBuffer = defaultFloodBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("github.com/flemzord/relayctl/internal/relay")
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	if c.NewRunID == nil {
		c.NewRunID = uuid.NewString
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Replayer runs bulk replays against a Platform using shared Settings.
type Replayer struct {
	platform Platform
	settings *Settings
	cfg      ReplayConfig
}

// NewReplayer creates a Replayer.
func NewReplayer(platform Platform, settings *Settings, cfg ReplayConfig) *Replayer {
	cfg.defaults()
	return &Replayer{platform: platform, settings: settings, cfg: cfg}
}

// Prepare checks that a run over rng may start now, without starting it.
func (r *Replayer) Prepare(rng Range) error {
	if !r.settings.SetupComplete() {
		return ErrSetupIncomplete
	}
	if err := rng.Validate(); err != nil {
		return err
	}
	if r.settings.Running() {
		return ErrRunInProgress
	}
	return nil
}

// Run replays rng from the source to the destination. It returns an error
// only when the run could not start; per-message failures are counted in
// the Result. sink may be nil.
func (r *Replayer) Run(ctx context.Context, rng Range, sink ProgressSink) (Result, error) {
	if !r.settings.SetupComplete() {
		return Result{}, ErrSetupIncomplete
	}
	if err := rng.Validate(); err != nil {
		return Result{}, err
	}
	if !r.settings.beginRun() {
		return Result{}, ErrRunInProgress
	}
	if sink == nil {
		sink = nopSink{}
	}

	run := &replayRun{
		Replayer: r,
		sink:     sink,
		source:   r.settings.Source(),
		dest:     r.settings.Destination(),
		cancel:   r.settings.Cancel(),
		res:      Result{RunID: r.cfg.NewRunID(), Range: rng},
	}
	run.cancel.Reset()
	run.logger = r.cfg.Logger.With("run_id", run.res.RunID)

	ctx, span := r.cfg.Tracer.Start(ctx, "relay.replay", trace.WithAttributes(
		attribute.String("relay.run_id", run.res.RunID),
		attribute.Int("relay.range.start", rng.Start),
		attribute.Int("relay.range.end", rng.End),
		attribute.Int64("relay.source.chat_id", run.source.ChatID),
		attribute.Int64("relay.destination.chat_id", run.dest.ChatID),
	))

	started := time.Now()
	run.walk(ctx, rng)
	run.res.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int("relay.processed", run.res.Processed),
		attribute.Int("relay.forwarded", run.res.Forwarded),
		attribute.Bool("relay.aborted", run.res.Aborted),
	)
	if run.res.Aborted {
		span.SetStatus(codes.Error, "aborted")
	}
	span.End()

	r.cfg.Metrics.observeRun(run.res)
	r.settings.endRun(run.res)
	run.logger.Info("replay finished",
		"range", rng.String(),
		"processed", run.res.Processed,
		"forwarded", run.res.Forwarded,
		"aborted", run.res.Aborted,
		"rate_limited", run.res.RateLimited,
		"errors", run.res.Errors,
		"duration", run.res.Duration,
	)
	return run.res, nil
}

type replayRun struct {
	*Replayer
	sink         ProgressSink
	logger       *slog.Logger
	source       message.ChatRef
	dest         message.ChatRef
	cancel       *CancelToken
	pinAttempted bool
	res          Result
}

func (run *replayRun) walk(ctx context.Context, rng Range) {
	total := rng.Total()
	run.logger.Info("replay started", "range", rng.String(), "source", run.source.String(), "destination", run.dest.String())

	for id := rng.Start; id <= rng.End; {
		if run.cancel.Requested() || ctx.Err() != nil {
			run.res.Aborted = true
			run.sink.Progress(ctx, run.progress(StateAborted, total))
			return
		}

		err := run.step(ctx, id)
		if err != nil && ctx.Err() != nil {
			// Interrupted mid-call: the ID is neither done nor skipped.
			continue
		}

		if rl, ok := AsRateLimit(err); ok {
			run.res.RateLimited++
			run.cfg.Metrics.incRateLimited()
			wait := rl.RetryAfter + run.cfg.FloodBuffer
			run.logger.Warn("rate limited, pausing", "message_id", id, "retry_after", rl.RetryAfter, "wait", wait)
			run.sink.Notice(ctx, fmt.Sprintf("Rate limited. Cooling down for %d seconds.", int(wait.Round(time.Second)/time.Second)))
			_ = run.cfg.Sleep(ctx, wait)
			continue
		}

		run.res.Processed++
		run.cfg.Metrics.incProcessed()
		if err != nil {
			run.res.Errors++
			run.logger.Error("relaying message failed", "message_id", id, "error", err)
		}

		if shouldReport(run.res.Processed, total) {
			run.sink.Progress(ctx, run.progress(StateRunning, total))
		}

		if err == nil && id < rng.End {
			_ = run.cfg.Sleep(ctx, run.cfg.PacingDelay)
		}
		id++
	}

	run.sink.Progress(ctx, run.progress(StateComplete, total))
}

// step fetches, matches, and sends one ID. A nil return means the ID was
// evaluated, whether or not it was forwarded.
func (run *replayRun) step(ctx context.Context, id int) error {
	msg, err := run.platform.FetchMessage(ctx, run.source.ChatID, id)
	if err != nil {
		if _, ok := AsRateLimit(err); !ok {
			run.cfg.Metrics.incError(pathBulk, "fetch")
		}
		return fmt.Errorf("fetching %d: %w", id, err)
	}
	if msg == nil {
		run.logger.Debug("message absent", "message_id", id)
		return nil
	}
	if !InScope(run.source, msg) {
		run.logger.Debug("message out of scope", "message_id", id, "thread_id", msg.ThreadID)
		return nil
	}
	category, ok := run.settings.Filters().Match(msg)
	if !ok {
		return nil
	}

	sent, err := run.platform.SendMessage(ctx, run.dest, msg)
	if err != nil {
		if _, ok := AsRateLimit(err); !ok {
			run.cfg.Metrics.incError(pathBulk, "send")
		}
		return fmt.Errorf("sending %d: %w", id, err)
	}
	run.res.Forwarded++
	run.cfg.Metrics.incForwarded(pathBulk, category)
	run.logger.Debug("message forwarded", "message_id", id, "category", string(category), "sent_id", sent.MessageID)

	if !run.pinAttempted {
		run.pinAttempted = true
		if err := run.platform.PinMessage(ctx, run.dest.ChatID, sent.MessageID); err != nil {
			run.cfg.Metrics.incError(pathBulk, "pin")
			run.logger.Warn("pinning first forwarded message failed", "sent_id", sent.MessageID, "error", err)
		} else {
			run.logger.Info("pinned first forwarded message", "sent_id", sent.MessageID)
		}
	}
	return nil
}

func (run *replayRun) progress(state State, total int) Progress {
	return Progress{
		RunID:     run.res.RunID,
		State:     state,
		Processed: run.res.Processed,
		Forwarded: run.res.Forwarded,
		Total:     total,
	}
}
