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

type recordedCall struct {
	initiatorID uuid.UUID
	receiverID  uuid.UUID
	outcome     domain.CallOutcome
}

type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) RecordCall(_ context.Context, initiatorID, receiverID uuid.UUID, _ domain.CallType, outcome domain.CallOutcome, _, _ time.Time) error {
	r.calls = append(r.calls, recordedCall{initiatorID, receiverID, outcome})
	return nil
}

func callEnvelope(t *testing.T, eventType string, doc events.CallBoxDoc) events.Envelope {
	t.Helper()
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return events.Envelope{
		EventType:     eventType,
		AggregateType: events.AggregateTypeCall,
		AggregateID:   doc.ReceiverID.String(),
		OccurredAt:    time.Now(),
		Payload:       payload,
	}
}

func outboundSession(caller, receiver uuid.UUID, seq int64) domain.CallSession {
	return domain.CallSession{
		Seq:        seq,
		CallerID:   caller,
		ReceiverID: receiver,
		CallType:   domain.CallTypeVideo,
		Status:     domain.CallStatusRinging,
		RoomName:   "room-test",
		CreatedAt:  time.Now(),
	}
}

func TestCallManager_OutboundAcceptedAndHangup(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	callee := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(caller, rec)

	m.PlacedCall(outboundSession(caller, callee, 7))
	assert.Equal(t, StateRingingOut, m.State())

	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallAccepted, events.CallBoxDoc{
		Seq: 7, CallerID: caller, ReceiverID: callee, Status: "accepted",
	}))
	assert.Equal(t, StateInCall, m.State())

	require.NoError(t, m.HungUp(ctx))
	assert.Equal(t, StateIdle, m.State())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, domain.CallCompleted, rec.calls[0].outcome)
	assert.Equal(t, caller, rec.calls[0].initiatorID)
	assert.Equal(t, callee, rec.calls[0].receiverID)

	// Hanging up while already idle writes nothing.
	require.NoError(t, m.HungUp(ctx))
	assert.Len(t, rec.calls, 1)
}

func TestCallManager_OutboundDeclined(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	callee := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(caller, rec)

	m.PlacedCall(outboundSession(caller, callee, 7))

	// A cleared event with a stale seq belongs to an older occupancy of
	// the mailbox and must not end our ring.
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallCleared, events.CallBoxDoc{
		Seq: 6, CallerID: uuid.New(), ReceiverID: callee,
	}))
	assert.Equal(t, StateRingingOut, m.State())
	assert.Empty(t, rec.calls)

	// Our own seq cleared while still ringing: the callee declined.
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallCleared, events.CallBoxDoc{
		Seq: 7, CallerID: caller, ReceiverID: callee,
	}))
	assert.Equal(t, StateIdle, m.State())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, domain.CallDeclined, rec.calls[0].outcome)
}

func TestCallManager_OutboundReplaced(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	callee := uuid.New()
	rival := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(caller, rec)

	m.PlacedCall(outboundSession(caller, callee, 7))

	// Someone else's ring lands in the same mailbox with a newer seq: our
	// call was silently displaced.
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallRinging, events.CallBoxDoc{
		Seq: 8, CallerID: rival, ReceiverID: callee, Status: "ringing",
	}))

	assert.Equal(t, StateIdle, m.State())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, domain.CallMissed, rec.calls[0].outcome)
	assert.Equal(t, caller, rec.calls[0].initiatorID)
}

func TestCallManager_InboundFlow(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	self := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(self, rec)

	ring := events.CallBoxDoc{Seq: 3, CallerID: caller, ReceiverID: self, Status: "ringing", CallerName: "alice"}
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallRinging, ring))
	assert.Equal(t, StateIncoming, m.State())
	assert.Equal(t, "alice", m.Session().CallerName)

	// Another device of ours answered.
	accepted := ring
	accepted.Status = "accepted"
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallAccepted, accepted))
	assert.Equal(t, StateInCall, m.State())

	// The caller hung up; they write the record, we just go idle.
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallCleared, accepted))
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, rec.calls)
}

func TestCallManager_InboundClearedWhileRinging(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	self := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(self, rec)

	ring := events.CallBoxDoc{Seq: 3, CallerID: caller, ReceiverID: self, Status: "ringing"}
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallRinging, ring))
	require.Equal(t, StateIncoming, m.State())

	// Caller gave up before we answered. The callee never logs.
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallCleared, ring))
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, rec.calls)
}

func TestCallManager_IgnoresForeignEvents(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	rec := &fakeRecorder{}
	m := NewCallManager(self, rec)

	m.PlacedCall(outboundSession(self, uuid.New(), 4))

	// Accepted event for a different seq (a different call entirely).
	m.HandleEnvelope(ctx, callEnvelope(t, events.EventTypeCallAccepted, events.CallBoxDoc{
		Seq: 9, CallerID: uuid.New(), ReceiverID: uuid.New(), Status: "accepted",
	}))
	assert.Equal(t, StateRingingOut, m.State())

	// Non-call envelopes are dropped outright.
	m.HandleEnvelope(ctx, events.Envelope{
		EventType:     events.EventTypePresenceOnline,
		AggregateType: events.AggregateTypePresence,
	})
	assert.Equal(t, StateRingingOut, m.State())
	assert.Empty(t, rec.calls)
}
