package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
)

// ConversationView merges the live event stream into the message history of
// one open conversation. It is seeded with a fetched snapshot and then fed
// envelopes; durable message IDs are the dedup key, so a message that
// arrives both in the snapshot and over the live channel renders once.
type ConversationView struct {
	mu sync.Mutex

	selfID         uuid.UUID
	conversationID uuid.UUID
	openedAt       time.Time

	msgs          []domain.Message
	index         map[uuid.UUID]int
	seenRequested map[uuid.UUID]bool
	closed        bool

	// markSeen is invoked at most once per peer message that appears live.
	markSeen func(ctx context.Context, messageID uuid.UUID)
}

func NewConversationView(selfID, conversationID uuid.UUID, openedAt time.Time, history []domain.Message, markSeen func(ctx context.Context, messageID uuid.UUID)) *ConversationView {
	v := &ConversationView{
		selfID:         selfID,
		conversationID: conversationID,
		openedAt:       openedAt,
		index:          make(map[uuid.UUID]int, len(history)),
		seenRequested:  make(map[uuid.UUID]bool),
		markSeen:       markSeen,
	}
	for _, m := range history {
		if m.ConversationID != conversationID {
			continue
		}
		v.index[m.ID] = len(v.msgs)
		v.msgs = append(v.msgs, m)
	}
	return v
}

// HandleEnvelope applies one live event. Events for other conversations and
// events that predate the view's snapshot are dropped.
func (v *ConversationView) HandleEnvelope(ctx context.Context, env events.Envelope) {
	if env.AggregateType != events.AggregateTypeMessage || env.AggregateID != v.conversationID.String() {
		return
	}
	if env.OccurredAt.Before(v.openedAt) {
		return
	}

	var doc events.MessageDoc
	if err := env.Decode(&doc); err != nil {
		return
	}
	if doc.ConversationID != v.conversationID {
		return
	}

	switch env.EventType {
	case events.EventTypeMessageCreated:
		v.applyCreated(ctx, doc)
	case events.EventTypeMessageUpdated:
		v.applyUpdated(doc)
	}
}

func (v *ConversationView) applyCreated(ctx context.Context, doc events.MessageDoc) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if _, known := v.index[doc.MessageID]; known {
		v.mu.Unlock()
		return
	}
	v.index[doc.MessageID] = len(v.msgs)
	v.msgs = append(v.msgs, docToMessage(doc))

	needSeen := doc.SenderID != v.selfID && !v.seenRequested[doc.MessageID]
	if needSeen {
		v.seenRequested[doc.MessageID] = true
	}
	v.mu.Unlock()

	if needSeen && v.markSeen != nil {
		v.markSeen(ctx, doc.MessageID)
	}
}

func (v *ConversationView) applyUpdated(doc events.MessageDoc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	if i, known := v.index[doc.MessageID]; known {
		if doc.IsSeen {
			v.msgs[i].IsSeen = true
		}
		if doc.MirrorID != "" {
			v.msgs[i].MirrorDocID = doc.MirrorID
		}
	}
}

// Messages returns the current render order, which is delivery order.
func (v *ConversationView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Message, len(v.msgs))
	copy(out, v.msgs)
	return out
}

// Close clears the view. Switching conversations tears the old view down
// eagerly so a late event for the previous conversation cannot leak in.
func (v *ConversationView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.msgs = nil
	v.index = map[uuid.UUID]int{}
	v.seenRequested = map[uuid.UUID]bool{}
}

func docToMessage(doc events.MessageDoc) domain.Message {
	return domain.Message{
		ID:             doc.MessageID,
		ConversationID: doc.ConversationID,
		SenderID:       doc.SenderID,
		Type:           domain.MessageType(doc.MessageType),
		Content:        doc.Content,
		URL:            doc.URL,
		ThumbnailURL:   doc.ThumbnailURL,
		IsSeen:         doc.IsSeen,
		MirrorDocID:    doc.MirrorID,
		CreatedAt:      doc.CreatedAt,
	}
}
