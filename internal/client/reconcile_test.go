package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftchat/internal/domain"
	"driftchat/internal/events"
)

func msgEnvelope(t *testing.T, eventType string, occurredAt time.Time, doc events.MessageDoc) events.Envelope {
	t.Helper()
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return events.Envelope{
		EventType:     eventType,
		AggregateType: events.AggregateTypeMessage,
		AggregateID:   doc.ConversationID.String(),
		OccurredAt:    occurredAt,
		Payload:       payload,
	}
}

func historyMessage(conversationID, senderID uuid.UUID, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           domain.MessageTypeText,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestConversationView_DedupAgainstHistory(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	peer := uuid.New()
	convID := uuid.New()
	openedAt := time.Now()

	known := historyMessage(convID, peer, "already fetched", openedAt.Add(-time.Minute))
	var seenCalls []uuid.UUID
	view := NewConversationView(self, convID, openedAt, []domain.Message{known}, func(_ context.Context, id uuid.UUID) {
		seenCalls = append(seenCalls, id)
	})

	// The live echo of a message we already have renders once.
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      known.ID,
		ConversationID: convID,
		SenderID:       peer,
		MessageType:    "text",
		Content:        "already fetched",
	}))
	assert.Len(t, view.Messages(), 1)
	assert.Empty(t, seenCalls, "deduped events do not trigger mark-seen")

	// A genuinely new peer message appends and marks seen exactly once,
	// even when the event is delivered twice.
	fresh := events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       peer,
		MessageType:    "text",
		Content:        "new",
	}
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(2*time.Second), fresh))
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(2*time.Second), fresh))

	msgs := view.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, fresh.MessageID, msgs[1].ID)
	assert.Equal(t, []uuid.UUID{fresh.MessageID}, seenCalls)
}

func TestConversationView_OwnMessagesNotMarkedSeen(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	convID := uuid.New()
	openedAt := time.Now()

	calls := 0
	view := NewConversationView(self, convID, openedAt, nil, func(context.Context, uuid.UUID) { calls++ })

	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       self,
		MessageType:    "text",
		Content:        "mine, echoed back",
	}))

	assert.Len(t, view.Messages(), 1)
	assert.Zero(t, calls)
}

func TestConversationView_Filters(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	peer := uuid.New()
	convID := uuid.New()
	openedAt := time.Now()
	view := NewConversationView(self, convID, openedAt, nil, nil)

	// Predates the snapshot: the history fetch already covered it.
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(-time.Second), events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       peer,
	}))

	// Another conversation's event.
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       peer,
	}))

	// Wrong aggregate entirely.
	view.HandleEnvelope(ctx, events.Envelope{
		EventType:     events.EventTypePresenceOnline,
		AggregateType: events.AggregateTypePresence,
		AggregateID:   peer.String(),
		OccurredAt:    openedAt.Add(time.Second),
	})

	assert.Empty(t, view.Messages())
}

func TestConversationView_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	peer := uuid.New()
	convID := uuid.New()
	openedAt := time.Now()

	first := historyMessage(convID, self, "first", openedAt.Add(-2*time.Minute))
	second := historyMessage(convID, peer, "second", openedAt.Add(-time.Minute))
	view := NewConversationView(self, convID, openedAt, []domain.Message{first, second}, nil)

	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageUpdated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      first.ID,
		ConversationID: convID,
		MirrorID:       "mirror-1",
		IsSeen:         true,
	}))

	msgs := view.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID, "update does not reorder")
	assert.True(t, msgs[0].IsSeen)
	assert.Equal(t, "mirror-1", msgs[0].MirrorDocID)
	assert.False(t, msgs[1].IsSeen)

	// Updates for unknown messages are ignored.
	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageUpdated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: convID,
		IsSeen:         true,
	}))
	assert.Len(t, view.Messages(), 2)
}

func TestConversationView_CloseDropsLateEvents(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	peer := uuid.New()
	convID := uuid.New()
	openedAt := time.Now()

	calls := 0
	view := NewConversationView(self, convID, openedAt,
		[]domain.Message{historyMessage(convID, peer, "old", openedAt.Add(-time.Minute))},
		func(context.Context, uuid.UUID) { calls++ })

	view.Close()
	assert.Empty(t, view.Messages())

	view.HandleEnvelope(ctx, msgEnvelope(t, events.EventTypeMessageCreated, openedAt.Add(time.Second), events.MessageDoc{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       peer,
	}))
	assert.Empty(t, view.Messages())
	assert.Zero(t, calls)
}
