package models

import (
	"encoding/json"
)

// Inbound event names
const (
	EventJoin              = "join"
	EventMessage           = "message"
	EventTyping            = "typing"
	EventDeleteForEveryone = "delete-for-everyone"
	EventCallUser          = "call-user"
	EventAcceptCall        = "accept-call"
	EventRejectCall        = "reject-call"
	EventCancelCall        = "cancel-call"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICE               = "ice"
	EventEndCall           = "end-call"
	EventMediaStatus       = "media-status"
)

// Outbound event names
const (
	EventMatched          = "matched"
	EventMessageConfirmed = "message-confirmed"
	EventPartnerLeft      = "partner-left"
	EventIncomingCall     = "incoming-call"
	EventCallSent         = "call-sent"
	EventCallAccepted     = "call-accepted"
	EventCallRejected     = "call-rejected"
	EventCallTimeout      = "call-timeout"
	EventCallFailed       = "call-failed"
	EventError            = "error"
)

// Envelope is the wire format for events in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is an event ready for delivery to a single client.
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// MessagePayload is the inbound chat message body.
type MessagePayload struct {
	Text string `json:"text"`
}

// DeletePayload identifies a message to redact on both ends.
type DeletePayload struct {
	MessageID string `json:"msgId"`
}

// MessageConfirmation tells the sender the id assigned to its message. The
// sender never receives a duplicate copy of its own message.
type MessageConfirmation struct {
	ID string `json:"id"`
}

// MediaStatusPayload reports the sender's camera and microphone state.
type MediaStatusPayload struct {
	Cam bool `json:"cam"`
	Mic bool `json:"mic"`
}

// ErrorPayload is the body of the outbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CallRejectedPayload optionally carries the rejection reason.
type CallRejectedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// CallFailedPayload explains why a call attempt was refused.
type CallFailedPayload struct {
	Reason string `json:"reason"`
}

// IncomingCallPayload tells the callee who is ringing them.
type IncomingCallPayload struct {
	Name string `json:"name"`
}
