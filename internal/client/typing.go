package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/events"
)

// TypingNotifier pushes typing start/stop signals to the backend.
type TypingNotifier interface {
	StartTyping(ctx context.Context, recipientID uuid.UUID) error
	StopTyping(ctx context.Context, recipientID uuid.UUID) error
}

// TypingDebouncer turns a stream of keystrokes into at most one start
// signal, and a stop signal once the user pauses or sends. The server-side
// TTL is the backstop; the debouncer keeps the chatter down.
type TypingDebouncer struct {
	mu        sync.Mutex
	notifier  TypingNotifier
	recipient uuid.UUID
	idle      time.Duration
	active    bool
	timer     *time.Timer
}

func NewTypingDebouncer(notifier TypingNotifier, recipient uuid.UUID, idle time.Duration) *TypingDebouncer {
	if idle == 0 {
		idle = 2 * time.Second
	}
	return &TypingDebouncer{notifier: notifier, recipient: recipient, idle: idle}
}

// Keystroke signals typing on the first key and rearms the idle timer on
// every subsequent one.
func (d *TypingDebouncer) Keystroke(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		d.active = true
		go func() { _ = d.notifier.StartTyping(ctx, d.recipient) }()
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() { d.stop(context.Background()) })
}

// Sent clears the indicator immediately; sending a message ends typing.
func (d *TypingDebouncer) Sent(ctx context.Context) {
	d.stop(ctx)
}

func (d *TypingDebouncer) stop(ctx context.Context) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	_ = d.notifier.StopTyping(ctx, d.recipient)
}

// TypingIndicator tracks who is typing to us right now. The UI shows the
// indicator only when the sender matches the open conversation partner.
type TypingIndicator struct {
	mu     sync.Mutex
	sender uuid.UUID
	active bool
}

func (t *TypingIndicator) HandleEnvelope(env events.Envelope) {
	if env.AggregateType != events.AggregateTypeTyping {
		return
	}
	var doc events.TypingDoc
	if err := env.Decode(&doc); err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch env.EventType {
	case events.EventTypeTypingStarted:
		t.sender = doc.SenderID
		t.active = true
	case events.EventTypeTypingStopped:
		if t.sender == doc.SenderID {
			t.active = false
		}
	}
}

// IsTyping reports whether the given partner is currently typing to us.
func (t *TypingIndicator) IsTyping(partner uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active && t.sender == partner
}
