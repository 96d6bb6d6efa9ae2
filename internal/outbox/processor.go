package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	"driftchat/internal/repository"
	"driftchat/pkg/logger"
)

// MirrorWriter is the slice of the live-channel mirror the processor needs.
type MirrorWriter interface {
	WriteMessageDoc(ctx context.Context, doc events.MessageDoc) error
	MarkDocSeen(ctx context.Context, mirrorID string) error
}

// NotificationAppender adds a notification to the receiver's mailbox.
type NotificationAppender interface {
	Append(ctx context.Context, notif domain.Notification) error
}

// MessageLinker records which mirror doc a durable message maps to.
type MessageLinker interface {
	SetMirrorDocID(ctx context.Context, id uuid.UUID, mirrorDocID string) error
}

// Processor drains pending outbox events: it materializes mirror docs and
// notifications in the live channel, then publishes the envelope. A failed
// event stays pending and is retried on a later pass, so a live-channel
// outage delays delivery instead of losing it.
type Processor struct {
	repo          repository.OutboxRepository
	publisher     events.Publisher
	mirror        MirrorWriter
	notifications NotificationAppender
	messages      MessageLinker
	log           *logger.Logger
	clock         func() time.Time
	batchSize     int
	interval      time.Duration
	maxRetries    int
}

func NewProcessor(
	repo repository.OutboxRepository,
	publisher events.Publisher,
	mirror MirrorWriter,
	notifications NotificationAppender,
	messages MessageLinker,
	log *logger.Logger,
	batchSize int,
	interval time.Duration,
	maxRetries int,
) *Processor {
	return &Processor{
		repo:          repo,
		publisher:     publisher,
		mirror:        mirror,
		notifications: notifications,
		messages:      messages,
		log:           log,
		clock:         time.Now,
		batchSize:     batchSize,
		interval:      interval,
		maxRetries:    maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

func (p *Processor) ProcessBatch(ctx context.Context) {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		p.log.Errorf("outbox: fetch pending: %v", err)
		return
	}

	for _, e := range batch {
		if e.RetryCount >= p.maxRetries {
			_ = p.repo.MarkFailed(ctx, e.ID, "max retries exceeded", true)
			p.log.Warnf("outbox: event %s exhausted retries", e.ID)
			continue
		}
		if err := p.process(ctx, e); err != nil {
			_ = p.repo.MarkFailed(ctx, e.ID, err.Error(), false)
			p.log.Warnf("outbox: event %s attempt %d failed: %v", e.ID, e.RetryCount+1, err)
			continue
		}
		_ = p.repo.MarkProcessed(ctx, e.ID)
	}
}

func (p *Processor) process(ctx context.Context, e domain.OutboxEvent) error {
	payload := e.Payload

	switch e.EventType {
	case events.EventTypeMessageCreated:
		var doc events.MessageDoc
		if err := json.Unmarshal(e.Payload, &doc); err != nil {
			return err
		}
		// The outbox row's ID doubles as the mirror doc ID, so retries of
		// the same event converge on one doc instead of stacking copies.
		doc.MirrorID = e.ID.String()
		if err := p.mirror.WriteMessageDoc(ctx, doc); err != nil {
			return err
		}
		amended, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		payload = amended

	case events.EventTypeMessageUpdated:
		var doc events.MessageDoc
		if err := json.Unmarshal(e.Payload, &doc); err != nil {
			return err
		}
		if doc.MirrorID != "" {
			if err := p.mirror.MarkDocSeen(ctx, doc.MirrorID); err != nil {
				p.log.Warnf("outbox: mark mirror doc %s seen: %v", doc.MirrorID, err)
			}
		}

	case events.EventTypeNotificationCreated:
		var notif domain.Notification
		if err := json.Unmarshal(e.Payload, &notif); err != nil {
			return err
		}
		if notif.ID == "" {
			notif.ID = e.ID.String()
		}
		if err := p.notifications.Append(ctx, notif); err != nil {
			return err
		}
		amended, err := json.Marshal(notif)
		if err != nil {
			return err
		}
		payload = amended
	}

	env := events.Envelope{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ctx, events.RouteChannel(env), data); err != nil {
		return err
	}

	// Best-effort write-back linking the durable row to its mirror doc.
	// The publish already happened; a failure here only loses the link.
	if e.EventType == events.EventTypeMessageCreated {
		var doc events.MessageDoc
		if err := json.Unmarshal(payload, &doc); err == nil {
			if err := p.messages.SetMirrorDocID(ctx, doc.MessageID, doc.MirrorID); err != nil {
				p.log.Warnf("outbox: link message %s to mirror doc: %v", doc.MessageID, err)
			}
		}
	}
	return nil
}
