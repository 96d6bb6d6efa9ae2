package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/repository"
	drift_errors "driftchat/pkg/errors"
)

// CallBox is the single-slot signaling mailbox, one per receiver.
type CallBox interface {
	Place(ctx context.Context, session domain.CallSession) (domain.CallSession, error)
	Get(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error)
	Accept(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error)
	Clear(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error)
}

type CallService struct {
	callbox  CallBox
	callRepo repository.CallRepository
	userRepo repository.UserRepository
}

func NewCallService(callbox CallBox, callRepo repository.CallRepository, userRepo repository.UserRepository) *CallService {
	return &CallService{callbox: callbox, callRepo: callRepo, userRepo: userRepo}
}

// StartCall places a ringing session in the receiver's mailbox. If another
// call was already ringing there, it is overwritten; the displaced caller
// learns about it from the seq bump on the call channel.
func (s *CallService) StartCall(ctx context.Context, callerID, receiverID uuid.UUID, callType domain.CallType) (domain.CallSession, error) {
	if callerID == receiverID {
		return domain.CallSession{}, drift_errors.ErrValidation
	}
	if callType != domain.CallTypeVideo && callType != domain.CallTypeAudio {
		return domain.CallSession{}, drift_errors.ErrValidation
	}
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return domain.CallSession{}, err
	}

	return s.callbox.Place(ctx, domain.CallSession{
		CallerID:   callerID,
		CallerName: caller.Username,
		ReceiverID: receiverID,
		CallType:   callType,
		RoomName:   fmt.Sprintf("room-%s", uuid.New()),
	})
}

// AcceptCall answers the call ringing in the caller's own mailbox.
func (s *CallService) AcceptCall(ctx context.Context, selfID uuid.UUID) (domain.CallSession, error) {
	return s.callbox.Accept(ctx, selfID)
}

// DeclineCall empties the callee's own mailbox without recording anything.
// The caller observes the cleared event while still ringing and logs the
// outcome from its side.
func (s *CallService) DeclineCall(ctx context.Context, selfID uuid.UUID) (domain.CallSession, error) {
	session, err := s.callbox.Get(ctx, selfID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if session.Status != domain.CallStatusRinging {
		return domain.CallSession{}, drift_errors.ErrInvalidTransition
	}
	return s.callbox.Clear(ctx, selfID)
}

// Hangup clears the mailbox for a call either party is part of.
func (s *CallService) Hangup(ctx context.Context, selfID, receiverID uuid.UUID) (domain.CallSession, error) {
	session, err := s.callbox.Get(ctx, receiverID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if session.CallerID != selfID && session.ReceiverID != selfID {
		return domain.CallSession{}, drift_errors.ErrForbidden
	}
	return s.callbox.Clear(ctx, receiverID)
}

type LogCallInput struct {
	InitiatorID uuid.UUID
	ReceiverID  uuid.UUID
	CallType    domain.CallType
	Outcome     domain.CallOutcome
	StartTime   time.Time
	EndTime     time.Time
}

// LogCall writes the durable after-the-fact record of a finished call. Only
// a party to the call may log it.
func (s *CallService) LogCall(ctx context.Context, selfID uuid.UUID, in LogCallInput) (domain.CallRecord, error) {
	if selfID != in.InitiatorID && selfID != in.ReceiverID {
		return domain.CallRecord{}, drift_errors.ErrForbidden
	}
	if in.EndTime.Before(in.StartTime) {
		return domain.CallRecord{}, drift_errors.ErrValidation
	}
	switch in.Outcome {
	case domain.CallCompleted, domain.CallMissed, domain.CallDeclined:
	default:
		return domain.CallRecord{}, drift_errors.ErrValidation
	}

	rec := domain.CallRecord{
		ID:          uuid.New(),
		InitiatorID: in.InitiatorID,
		ReceiverID:  in.ReceiverID,
		CallType:    in.CallType,
		Status:      in.Outcome,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		DurationSec: int64(in.EndTime.Sub(in.StartTime).Seconds()),
	}
	if err := s.callRepo.CreateRecord(ctx, &rec); err != nil {
		return domain.CallRecord{}, err
	}
	return rec, nil
}

func (s *CallService) History(ctx context.Context, selfID uuid.UUID) ([]domain.CallRecord, error) {
	return s.callRepo.ListForUser(ctx, selfID)
}
