// Package ingest consumes track-request events produced by the chat
// integration bots (Twitch, YouTube, Restream) and feeds them into the
// owning DJ's active queue.
package ingest

import "context"

// RequestEvent is one chat-sourced track request.
type RequestEvent struct {
	LicenseKey string `json:"license_key"`
	Username   string `json:"username"`
	Track      string `json:"track"`
	Platform   string `json:"platform"` // "twitch" | "youtube" | "restream"
	Timestamp  int64  `json:"timestamp"`
}

// RequestEventHandler handles incoming chat request events.
type RequestEventHandler interface {
	HandleRequestEvent(ctx context.Context, event *RequestEvent) error
}

// RequestEventConsumer defines the interface for consuming request events.
type RequestEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
