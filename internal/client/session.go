package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	"driftchat/pkg/logger"
)

// Session owns the standing listeners a signed-in user keeps for the whole
// lifetime of the app: their notification mailbox, their call mailbox, the
// typing indicator and the presence stream. Each listener is supervised;
// when the live channel drops, it reconnects with backoff instead of dying.
type Session struct {
	selfID uuid.UUID
	sub    events.Subscriber
	log    *logger.Logger

	Calls  *CallManager
	Roster *Roster
	Typing *TypingIndicator

	onNotification func(domain.Notification)

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

func NewSession(selfID uuid.UUID, sub events.Subscriber, recorder CallRecorder, log *logger.Logger) *Session {
	return &Session{
		selfID: selfID,
		sub:    sub,
		log:    log,
		Calls:  NewCallManager(selfID, recorder),
		Roster: NewRoster(),
		Typing: &TypingIndicator{},
	}
}

// OnNotification registers the callback for new-message notifications.
// Must be called before Start.
func (s *Session) OnNotification(fn func(domain.Notification)) {
	s.onNotification = fn
}

// Start launches the standing listeners. They run until ctx is cancelled
// or Stop is called.
func (s *Session) Start(ctx context.Context) {
	self := s.selfID.String()

	s.listen(ctx, []string{events.ChannelPrefixUser + self}, func(env events.Envelope) {
		if env.EventType == events.EventTypeNotificationCreated && s.onNotification != nil {
			var notif domain.Notification
			if err := env.Decode(&notif); err == nil {
				s.onNotification(notif)
			}
		}
	})
	s.listen(ctx, []string{events.ChannelPrefixCall + self}, func(env events.Envelope) {
		s.Calls.HandleEnvelope(ctx, env)
	})
	s.listen(ctx, []string{events.ChannelPrefixTyping + self}, func(env events.Envelope) {
		s.Typing.HandleEnvelope(env)
	})
	s.listen(ctx, []string{events.ChannelPrefixPresence + "*"}, func(env events.Envelope) {
		s.Roster.HandleEnvelope(env)
	})
}

// WatchOutgoingCall follows the callee's mailbox channel while our call is
// pending there. The returned cancel tears the listener down once the call
// reaches a terminal state.
func (s *Session) WatchOutgoingCall(ctx context.Context, receiverID uuid.UUID) context.CancelFunc {
	watchCtx, cancel := context.WithCancel(ctx)
	s.runListener(watchCtx, []string{events.ChannelPrefixCall + receiverID.String()}, func(env events.Envelope) {
		s.Calls.HandleEnvelope(watchCtx, env)
	})
	return cancel
}

// Stop cancels every listener and waits for them to drain.
func (s *Session) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
}

func (s *Session) listen(ctx context.Context, channels []string, handler func(events.Envelope)) {
	listenCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	s.runListener(listenCtx, channels, handler)
}

func (s *Session) runListener(ctx context.Context, channels []string, handler func(events.Envelope)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		backoff := time.Second
		for {
			err := s.sub.Subscribe(ctx, channels, func(channel string, payload []byte) {
				var env events.Envelope
				if jsonErr := json.Unmarshal(payload, &env); jsonErr != nil {
					return
				}
				handler(env)
			})
			if ctx.Err() != nil {
				return
			}
			if s.log != nil {
				s.log.Warnf("session: listener %v dropped: %v; reconnecting in %s", channels, err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}
