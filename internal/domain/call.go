package domain

import (
	"time"

	"github.com/google/uuid"
)

type CallType string

const (
	CallTypeVideo CallType = "video"
	CallTypeAudio CallType = "audio"
)

type CallOutcome string

const (
	CallCompleted CallOutcome = "completed"
	CallMissed    CallOutcome = "missed"
	CallDeclined  CallOutcome = "declined"
)

// CallRecord is the durable after-the-fact log of a finished call, written
// once by whichever party ended it.
type CallRecord struct {
	ID          uuid.UUID   `json:"id"`
	InitiatorID uuid.UUID   `json:"initiator"`
	ReceiverID  uuid.UUID   `json:"receiver"`
	CallType    CallType    `json:"callType"`
	Status      CallOutcome `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     time.Time   `json:"endTime"`
	DurationSec int64       `json:"duration"`
	CreatedAt   time.Time   `json:"createdAt"`

	Initiator Profile `json:"initiatorProfile,omitempty"`
	Receiver  Profile `json:"receiverProfile,omitempty"`
}

type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusAccepted CallStatus = "accepted"
)

// CallSession is the ephemeral single-slot signaling document keyed by the
// receiver. Seq increases monotonically per receiver: a party holding an
// older seq that observes a newer one knows its call was replaced, not
// answered.
type CallSession struct {
	Seq        int64      `json:"seq"`
	CallerID   uuid.UUID  `json:"callerId"`
	CallerName string     `json:"callerName"`
	ReceiverID uuid.UUID  `json:"receiverId"`
	CallType   CallType   `json:"callType"`
	Status     CallStatus `json:"status"`
	RoomName   string     `json:"roomName"`
	CreatedAt  time.Time  `json:"createdAt"`
}
