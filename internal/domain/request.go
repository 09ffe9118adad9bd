package domain

// Queue selects one of the two per-tenant queues. The value doubles as the
// storage path segment, so it must match the addressing scheme exactly.
type Queue string

const (
	// QueueActive is the live request list a DJ works through during a stream.
	QueueActive Queue = "requests"
	// QueueStaged holds requests deferred to a future stream.
	QueueStaged Queue = "nextStream"
)

// Valid reports whether q names a known queue.
func (q Queue) Valid() bool {
	return q == QueueActive || q == QueueStaged
}

// Platform tags where a request originated.
type Platform string

const (
	PlatformTwitch   Platform = "twitch"
	PlatformYouTube  Platform = "youtube"
	PlatformRestream Platform = "restream"
	PlatformManual   Platform = "manual"
	PlatformMobile   Platform = "mobile"
)

// AnonymousName is substituted at presentation time when a request carries no
// requester name. It is never written to storage.
const AnonymousName = "Anonymous"

// Request is a single queue entry. IDs are derived from creation wall-clock
// time in milliseconds, so they are unique only when creations are spaced
// apart; the same id follows an entry when it transfers between queues.
type Request struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username,omitempty"`
	Track     string   `json:"request"`
	Notes     string   `json:"notes,omitempty"`
	Played    bool     `json:"played"`
	Platform  Platform `json:"platform,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// DisplayName returns the requester name, or the anonymous sentinel.
func (r *Request) DisplayName() string {
	if r.Username == "" {
		return AnonymousName
	}
	return r.Username
}

// NewRequest is the caller-supplied portion of an entry being added.
// Track content is a caller contract (required non-empty); the store accepts
// whatever it is given.
type NewRequest struct {
	Username string   `json:"username,omitempty"`
	Track    string   `json:"request"`
	Notes    string   `json:"notes,omitempty"`
	Platform Platform `json:"platform,omitempty"`
}

// RequestUpdate carries an edit to an existing entry. Nil fields are left
// untouched (true partial update, unlike Add).
type RequestUpdate struct {
	Track *string `json:"request,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// ResolvedHandle is what a handle lookup yields: the tenant's storage key and
// the DJ's public display name. The raw license token is never exposed to
// viewers.
type ResolvedHandle struct {
	TenantKey   string `json:"tenant_key"`
	DisplayName string `json:"display_name"`
}

// HandleRecord is the forward record stored under djHandles/{handle}.
type HandleRecord struct {
	LicenseKey  string `json:"licenseKey"`
	DisplayName string `json:"displayName"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Submission is returned to a viewer who submitted a request through a handle.
// Position is a point-in-time estimate, not a reservation.
type Submission struct {
	ID            int64  `json:"id"`
	QueuePosition int    `json:"queue_position"`
	DJDisplayName string `json:"dj_display_name"`
}
