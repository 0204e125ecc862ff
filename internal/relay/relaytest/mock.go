// Package relaytest provides test doubles for the relay package.
package relaytest

import (
	"context"
	"sync"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

// SendCall records one SendMessage invocation.
type SendCall struct {
	Dest      message.ChatRef
	MessageID int
}

// Platform is an in-memory relay.Platform serving Messages by ID.
type Platform struct {
	Messages map[int]*message.Message

	// FetchFunc replaces the map lookup when set.
	FetchFunc func(ctx context.Context, id int) (*message.Message, error)
	// SendFunc runs before each send; a non-nil error fails the send.
	SendFunc func(ctx context.Context, dest message.ChatRef, msg *message.Message) error
	// PinFunc decides the pin outcome when set.
	PinFunc func(ctx context.Context, chatID int64, messageID int) error

	mu      sync.Mutex
	fetches []int
	sends   []SendCall
	pins    []int
	nextID  int
}

var _ relay.Platform = (*Platform)(nil)

// NewPlatform returns a Platform serving msgs.
func NewPlatform(msgs ...*message.Message) *Platform {
	p := &Platform{Messages: make(map[int]*message.Message)}
	for _, m := range msgs {
		p.Messages[m.ID] = m
	}
	return p
}

// FetchMessage implements relay.Platform.
func (p *Platform) FetchMessage(ctx context.Context, _ int64, id int) (*message.Message, error) {
	p.mu.Lock()
	p.fetches = append(p.fetches, id)
	p.mu.Unlock()

	if p.FetchFunc != nil {
		return p.FetchFunc(ctx, id)
	}
	return p.Messages[id], nil
}

// SendMessage implements relay.Platform.
func (p *Platform) SendMessage(ctx context.Context, dest message.ChatRef, msg *message.Message) (message.Sent, error) {
	if p.SendFunc != nil {
		if err := p.SendFunc(ctx, dest, msg); err != nil {
			return message.Sent{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, SendCall{Dest: dest, MessageID: msg.ID})
	p.nextID++
	return message.Sent{ChatID: dest.ChatID, MessageID: 1000 + p.nextID}, nil
}

// PinMessage implements relay.Platform.
func (p *Platform) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	p.mu.Lock()
	p.pins = append(p.pins, messageID)
	p.mu.Unlock()

	if p.PinFunc != nil {
		return p.PinFunc(ctx, chatID, messageID)
	}
	return nil
}

// Fetches returns the fetched IDs in call order.
func (p *Platform) Fetches() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.fetches...)
}

// Sends returns the successful sends in call order.
func (p *Platform) Sends() []SendCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SendCall(nil), p.sends...)
}

// Pins returns the pinned message IDs in call order.
func (p *Platform) Pins() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.pins...)
}

// Sink records progress updates and notices.
type Sink struct {
	mu       sync.Mutex
	updates  []relay.Progress
	notices  []string
	OnUpdate func(relay.Progress)
}

var _ relay.ProgressSink = (*Sink)(nil)

// Progress implements relay.ProgressSink.
func (s *Sink) Progress(_ context.Context, p relay.Progress) {
	s.mu.Lock()
	s.updates = append(s.updates, p)
	s.mu.Unlock()
	if s.OnUpdate != nil {
		s.OnUpdate(p)
	}
}

// Notice implements relay.ProgressSink.
func (s *Sink) Notice(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
}

// Updates returns the recorded progress updates.
func (s *Sink) Updates() []relay.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relay.Progress(nil), s.updates...)
}

// Last returns the most recent update.
func (s *Sink) Last() (relay.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return relay.Progress{}, false
	}
	return s.updates[len(s.updates)-1], true
}

// Notices returns the recorded notices.
func (s *Sink) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

// Text returns a plain-text message with the given ID.
func Text(id int, text string) *message.Message {
	return &message.Message{ID: id, Text: text}
}
