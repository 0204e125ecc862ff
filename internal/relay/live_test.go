package relay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/internal/relay/relaytest"
	"github.com/flemzord/relayctl/pkg/message"
)

func TestLiveRelay_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		live     bool
		source   message.ChatRef
		msg      *message.Message
		wantSent bool
	}{
		{"disabled", false, message.ChatRef{ChatID: sourceChat}, &message.Message{ChatID: sourceChat, ID: 1, Text: "x"}, false},
		{"other chat", true, message.ChatRef{ChatID: sourceChat}, &message.Message{ChatID: 42, ID: 1, Text: "x"}, false},
		{"match", true, message.ChatRef{ChatID: sourceChat}, &message.Message{ChatID: sourceChat, ID: 1, Text: "x"}, true},
		{"thread message without thread scope", true, message.ChatRef{ChatID: sourceChat}, &message.Message{ChatID: sourceChat, ID: 1, Text: "x", ThreadID: 3}, false},
		{"thread scope", true, message.ChatRef{ChatID: sourceChat, ThreadID: 3}, &message.Message{ChatID: sourceChat, ID: 1, Text: "x", ThreadID: 3}, true},
		{"filter miss", true, message.ChatRef{ChatID: sourceChat}, &message.Message{ChatID: sourceChat, ID: 1, Photo: true}, false},
		{"nil", true, message.ChatRef{ChatID: sourceChat}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			settings := readySettings(relay.Text)
			settings.SetSource(tt.source)
			settings.SetLive(tt.live)
			platform := relaytest.NewPlatform()
			lr := relay.NewLiveRelay(platform, settings, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

			if got := lr.Handle(context.Background(), tt.msg); got != tt.wantSent {
				t.Errorf("Handle() = %v, want %v", got, tt.wantSent)
			}
			wantSends := 0
			if tt.wantSent {
				wantSends = 1
			}
			if n := len(platform.Sends()); n != wantSends {
				t.Errorf("sends = %d, want %d", n, wantSends)
			}
			if n := len(platform.Pins()); n != 0 {
				t.Errorf("live relay pinned %d messages", n)
			}
		})
	}
}

func TestLiveRelay_SendErrorSwallowed(t *testing.T) {
	t.Parallel()

	settings := readySettings(relay.Text)
	settings.SetLive(true)
	platform := relaytest.NewPlatform()
	calls := 0
	platform.SendFunc = func(context.Context, message.ChatRef, *message.Message) error {
		calls++
		return &relay.RateLimitError{RetryAfter: 1}
	}
	lr := relay.NewLiveRelay(platform, settings, nil, nil)

	if lr.Handle(context.Background(), &message.Message{ChatID: sourceChat, ID: 9, Text: "x"}) {
		t.Error("Handle() = true on failed send")
	}
	if calls != 1 {
		t.Errorf("send attempts = %d, want a single attempt", calls)
	}
}

func TestRateLimitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("Too Many Requests")
	err := errors.Join(errors.New("context"), &relay.RateLimitError{RetryAfter: 3, Err: inner})

	rl, ok := relay.AsRateLimit(err)
	if !ok || rl.RetryAfter != 3 {
		t.Fatalf("AsRateLimit() = %v, %v", rl, ok)
	}
	if !errors.Is(err, inner) {
		t.Error("RateLimitError should unwrap to its cause")
	}
	if _, ok := relay.AsRateLimit(inner); ok {
		t.Error("plain error reported as rate limit")
	}
}
