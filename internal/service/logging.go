package service

// Standard log field names used across the service and middleware so log
// lines stay greppable.
const (
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
	LogFieldMethod    = "method"
	LogFieldURL       = "url"
	LogFieldRemoteIP  = "remote_ip"
	LogFieldUserAgent = "user_agent"

	LogFieldConnID    = "conn_id"
	LogFieldPartnerID = "partner_id"
	LogFieldRoom      = "room"
	LogFieldEvent     = "event"
	LogFieldMessageID = "msg_id"
	LogFieldCallState = "call_state"
	LogFieldErrorCode = "code"
)
