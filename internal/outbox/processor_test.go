package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	"driftchat/pkg/logger"
)

type fakeOutboxRepo struct {
	pending   []domain.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	terminal  map[uuid.UUID]bool
}

func newFakeOutboxRepo(pending ...domain.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending:  pending,
		failed:   make(map[uuid.UUID]string),
		terminal: make(map[uuid.UUID]bool),
	}
}

func (r *fakeOutboxRepo) GetPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string, terminal bool) error {
	r.failed[id] = reason
	r.terminal[id] = terminal
	return nil
}

type fakeChannelPublisher struct {
	published map[string][][]byte
	err       error
}

func newFakeChannelPublisher() *fakeChannelPublisher {
	return &fakeChannelPublisher{published: make(map[string][][]byte)}
}

func (p *fakeChannelPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published[channel] = append(p.published[channel], payload)
	return nil
}

type fakeMirror struct {
	docs map[string]events.MessageDoc
	seen []string
	err  error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{docs: make(map[string]events.MessageDoc)}
}

func (m *fakeMirror) WriteMessageDoc(_ context.Context, doc events.MessageDoc) error {
	if m.err != nil {
		return m.err
	}
	m.docs[doc.MirrorID] = doc
	return nil
}

func (m *fakeMirror) MarkDocSeen(_ context.Context, mirrorID string) error {
	m.seen = append(m.seen, mirrorID)
	return nil
}

type fakeAppender struct {
	notifs []domain.Notification
}

func (a *fakeAppender) Append(_ context.Context, notif domain.Notification) error {
	a.notifs = append(a.notifs, notif)
	return nil
}

type fakeLinker struct {
	links map[uuid.UUID]string
	err   error
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{links: make(map[uuid.UUID]string)}
}

func (l *fakeLinker) SetMirrorDocID(_ context.Context, id uuid.UUID, mirrorDocID string) error {
	if l.err != nil {
		return l.err
	}
	l.links[id] = mirrorDocID
	return nil
}

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func messageCreatedEvent(t *testing.T, conversationID uuid.UUID) (domain.OutboxEvent, events.MessageDoc) {
	t.Helper()
	doc := events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		SenderID:       uuid.New(),
		SenderName:     "alice",
		MessageType:    "text",
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return domain.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventTypeMessageCreated,
		AggregateType: events.AggregateTypeMessage,
		AggregateID:   conversationID.String(),
		Payload:       payload,
		CreatedAt:     time.Now(),
	}, doc
}

func TestProcessBatch_MessageCreated(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()
	event, doc := messageCreatedEvent(t, conversationID)

	repo := newFakeOutboxRepo(event)
	pub := newFakeChannelPublisher()
	mirror := newFakeMirror()
	linker := newFakeLinker()
	p := NewProcessor(repo, pub, mirror, &fakeAppender{}, linker, nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	// The mirror doc takes the outbox row's ID so a retry converges on the
	// same doc.
	written, ok := mirror.docs[event.ID.String()]
	require.True(t, ok)
	assert.Equal(t, doc.MessageID, written.MessageID)

	channel := events.ChannelPrefixConversation + conversationID.String()
	require.Len(t, pub.published[channel], 1)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(pub.published[channel][0], &env))
	assert.Equal(t, events.EventTypeMessageCreated, env.EventType)

	var published events.MessageDoc
	require.NoError(t, env.Decode(&published))
	assert.Equal(t, event.ID.String(), published.MirrorID, "published payload carries the mirror id")

	assert.Equal(t, event.ID.String(), linker.links[doc.MessageID])
	assert.Equal(t, []uuid.UUID{event.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestProcessBatch_NotificationCreated(t *testing.T) {
	ctx := context.Background()
	receiverID := uuid.New()
	notif := domain.Notification{
		ReceiverID:     receiverID,
		SenderID:       uuid.New(),
		SenderName:     "alice",
		Type:           domain.NotificationNewMessage,
		Preview:        "hello",
		ConversationID: uuid.New(),
		CreatedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(notif)
	require.NoError(t, err)
	event := domain.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventTypeNotificationCreated,
		AggregateType: events.AggregateTypeNotification,
		AggregateID:   receiverID.String(),
		Payload:       payload,
		CreatedAt:     time.Now(),
	}

	repo := newFakeOutboxRepo(event)
	pub := newFakeChannelPublisher()
	appender := &fakeAppender{}
	p := NewProcessor(repo, pub, newFakeMirror(), appender, newFakeLinker(), nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	require.Len(t, appender.notifs, 1)
	assert.Equal(t, event.ID.String(), appender.notifs[0].ID, "blank notification id is filled from the event")

	channel := events.ChannelPrefixUser + receiverID.String()
	require.Len(t, pub.published[channel], 1)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.processed)
}

func TestProcessBatch_MessageUpdated(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()
	doc := events.MessageDoc{
		MirrorID:       uuid.NewString(),
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		IsSeen:         true,
	}
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	event := domain.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventTypeMessageUpdated,
		AggregateType: events.AggregateTypeMessage,
		AggregateID:   conversationID.String(),
		Payload:       payload,
	}

	repo := newFakeOutboxRepo(event)
	pub := newFakeChannelPublisher()
	mirror := newFakeMirror()
	p := NewProcessor(repo, pub, mirror, &fakeAppender{}, newFakeLinker(), nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	assert.Equal(t, []string{doc.MirrorID}, mirror.seen)
	channel := events.ChannelPrefixConversation + conversationID.String()
	assert.Len(t, pub.published[channel], 1)
}

func TestProcessBatch_PublishFailureStaysPending(t *testing.T) {
	ctx := context.Background()
	event, _ := messageCreatedEvent(t, uuid.New())

	repo := newFakeOutboxRepo(event)
	pub := newFakeChannelPublisher()
	pub.err = errors.New("redis down")
	p := NewProcessor(repo, pub, newFakeMirror(), &fakeAppender{}, newFakeLinker(), nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	assert.Empty(t, repo.processed)
	assert.Equal(t, "redis down", repo.failed[event.ID])
	assert.False(t, repo.terminal[event.ID], "transient failures stay pending")
}

func TestProcessBatch_ExhaustedRetriesAreTerminal(t *testing.T) {
	ctx := context.Background()
	event, _ := messageCreatedEvent(t, uuid.New())
	event.RetryCount = 5

	repo := newFakeOutboxRepo(event)
	pub := newFakeChannelPublisher()
	p := NewProcessor(repo, pub, newFakeMirror(), &fakeAppender{}, newFakeLinker(), nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	assert.Empty(t, repo.processed)
	assert.Empty(t, pub.published, "exhausted events are not retried")
	assert.True(t, repo.terminal[event.ID])
}

func TestProcessBatch_LinkFailureDoesNotFailEvent(t *testing.T) {
	ctx := context.Background()
	event, _ := messageCreatedEvent(t, uuid.New())

	repo := newFakeOutboxRepo(event)
	linker := newFakeLinker()
	linker.err = errors.New("db hiccup")
	p := NewProcessor(repo, newFakeChannelPublisher(), newFakeMirror(), &fakeAppender{}, linker, nopLogger(), 10, time.Second, 5)

	p.ProcessBatch(ctx)

	assert.Equal(t, []uuid.UUID{event.ID}, repo.processed, "publish happened, link is best-effort")
	assert.Empty(t, repo.failed)
}
