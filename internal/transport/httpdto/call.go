package httpdto

import "time"

type StartCallRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	CallType   string `json:"callType" binding:"required"`
}

type HangupRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type LogCallRequest struct {
	InitiatorID string    `json:"initiatorId" binding:"required"`
	ReceiverID  string    `json:"receiverId" binding:"required"`
	CallType    string    `json:"callType" binding:"required"`
	Status      string    `json:"status" binding:"required"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
}
