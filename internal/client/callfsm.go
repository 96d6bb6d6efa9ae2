package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
)

// CallUIState is the local call screen state.
type CallUIState int

const (
	StateIdle CallUIState = iota
	StateRingingOut
	StateIncoming
	StateInCall
)

// CallRecorder writes the after-the-fact history entry for a finished call.
type CallRecorder interface {
	RecordCall(ctx context.Context, initiatorID, receiverID uuid.UUID, callType domain.CallType, outcome domain.CallOutcome, start, end time.Time) error
}

// CallManager runs the local call state machine for one user. It consumes
// mailbox events from the call channels and compares sequence numbers to
// tell "my call was answered or declined" apart from "my call was silently
// replaced by someone else's".
type CallManager struct {
	mu sync.Mutex

	selfID   uuid.UUID
	state    CallUIState
	session  domain.CallSession
	placedAt time.Time
	recorder CallRecorder
}

func NewCallManager(selfID uuid.UUID, recorder CallRecorder) *CallManager {
	return &CallManager{selfID: selfID, recorder: recorder}
}

func (m *CallManager) State() CallUIState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CallManager) Session() domain.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// PlacedCall records that we started an outbound call. The session comes
// from the start-call response and carries the seq that identifies our
// occupancy of the callee's mailbox.
func (m *CallManager) PlacedCall(session domain.CallSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateRingingOut
	m.session = session
	m.placedAt = time.Now()
}

// AcceptedCall records that we answered the call ringing in our mailbox.
func (m *CallManager) AcceptedCall(session domain.CallSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateInCall
	m.session = session
	m.placedAt = session.CreatedAt
}

// DeclinedCall records that we rejected the incoming call. No history
// entry; the caller logs the outcome from its side.
func (m *CallManager) DeclinedCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.session = domain.CallSession{}
}

// HungUp finishes an in-progress call from our side and writes the single
// completed history record. The other party sees the cleared event and
// goes idle without logging.
func (m *CallManager) HungUp(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInCall {
		m.mu.Unlock()
		return nil
	}
	session := m.session
	start := m.placedAt
	m.state = StateIdle
	m.session = domain.CallSession{}
	m.mu.Unlock()

	if m.recorder == nil {
		return nil
	}
	return m.recorder.RecordCall(ctx, session.CallerID, session.ReceiverID, session.CallType, domain.CallCompleted, start, time.Now())
}

// HandleEnvelope feeds one call-channel event through the state machine.
func (m *CallManager) HandleEnvelope(ctx context.Context, env events.Envelope) {
	if env.AggregateType != events.AggregateTypeCall {
		return
	}
	var doc events.CallBoxDoc
	if err := env.Decode(&doc); err != nil {
		return
	}

	switch env.EventType {
	case events.EventTypeCallRinging:
		m.onRinging(ctx, doc)
	case events.EventTypeCallAccepted:
		m.onAccepted(doc)
	case events.EventTypeCallCleared:
		m.onCleared(ctx, doc)
	}
}

func (m *CallManager) onRinging(ctx context.Context, doc events.CallBoxDoc) {
	m.mu.Lock()

	// Inbound ring on our own mailbox.
	if doc.ReceiverID == m.selfID && doc.CallerID != m.selfID {
		if m.state == StateIdle || m.state == StateIncoming {
			m.state = StateIncoming
			m.session = docToSession(doc)
		}
		m.mu.Unlock()
		return
	}

	// A newer ring on the mailbox we were occupying means our call was
	// silently replaced. Log it as missed from our side.
	if m.state == StateRingingOut && doc.ReceiverID == m.session.ReceiverID && doc.Seq > m.session.Seq {
		session := m.session
		start := m.placedAt
		m.state = StateIdle
		m.session = domain.CallSession{}
		m.mu.Unlock()
		m.record(ctx, session, domain.CallMissed, start)
		return
	}
	m.mu.Unlock()
}

func (m *CallManager) onAccepted(doc events.CallBoxDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRingingOut && doc.Seq == m.session.Seq {
		m.state = StateInCall
		m.session = docToSession(doc)
		return
	}
	// Another device of ours answered the call in our mailbox.
	if m.state == StateIncoming && doc.ReceiverID == m.selfID {
		m.state = StateInCall
		m.session = docToSession(doc)
	}
}

func (m *CallManager) onCleared(ctx context.Context, doc events.CallBoxDoc) {
	m.mu.Lock()

	switch m.state {
	case StateRingingOut:
		if doc.Seq != m.session.Seq {
			m.mu.Unlock()
			return
		}
		// Our own ring was removed before being answered: declined.
		session := m.session
		start := m.placedAt
		m.state = StateIdle
		m.session = domain.CallSession{}
		m.mu.Unlock()
		m.record(ctx, session, domain.CallDeclined, start)
		return

	case StateIncoming:
		if doc.ReceiverID == m.selfID {
			m.state = StateIdle
			m.session = domain.CallSession{}
		}

	case StateInCall:
		// The other party hung up and logged the record; we just go idle.
		if doc.Seq == m.session.Seq {
			m.state = StateIdle
			m.session = domain.CallSession{}
		}
	}
	m.mu.Unlock()
}

func (m *CallManager) record(ctx context.Context, session domain.CallSession, outcome domain.CallOutcome, start time.Time) {
	if m.recorder == nil {
		return
	}
	_ = m.recorder.RecordCall(ctx, session.CallerID, session.ReceiverID, session.CallType, outcome, start, time.Now())
}

func docToSession(doc events.CallBoxDoc) domain.CallSession {
	return domain.CallSession{
		Seq:        doc.Seq,
		CallerID:   doc.CallerID,
		CallerName: doc.CallerName,
		ReceiverID: doc.ReceiverID,
		CallType:   domain.CallType(doc.CallType),
		Status:     domain.CallStatus(doc.Status),
		RoomName:   doc.RoomName,
		CreatedAt:  doc.CreatedAt,
	}
}
