package domain

// WebSocket message types from client.
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeSnapshot = "snapshot"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// SubscribeMessage is sent by a client to open a live feed on one queue.
type SubscribeMessage struct {
	Type       string `json:"type"`
	LicenseKey string `json:"license_key"`
	Queue      Queue  `json:"queue"`
}

// UnsubscribeMessage closes a previously opened feed.
type UnsubscribeMessage struct {
	Type       string `json:"type"`
	LicenseKey string `json:"license_key"`
	Queue      Queue  `json:"queue"`
}

// SnapshotMessage carries the full current state of a queue. The backend
// pushes whole snapshots on every change, never incremental diffs.
type SnapshotMessage struct {
	Type     string      `json:"type"`
	Queue    Queue       `json:"queue"`
	Requests []Request   `json:"requests"`
	Counts   QueueCounts `json:"counts"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Message: message}
}

// QueueUpdatePayload is published to Redis Pub/Sub after every queue mutation
// so all instances re-snapshot and fan out to their local subscribers.
type QueueUpdatePayload struct {
	TenantKey string `json:"tenant_key"`
	Queue     Queue  `json:"queue"`
}
