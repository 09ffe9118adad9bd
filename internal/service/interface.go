package service

import (
	"context"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/ingest"
)

// QueueService manages a tenant's two request queues. Every operation takes
// the license key explicitly; there is no ambient "current tenant" state, so
// one instance serves any number of concurrent logical sessions.
type QueueService interface {
	// List reads the current snapshot of a queue, projected for display.
	List(ctx context.Context, licenseKey string, queue domain.Queue) ([]domain.Request, domain.QueueCounts, error)

	// Add appends a new entry and returns its generated id.
	Add(ctx context.Context, licenseKey string, queue domain.Queue, req domain.NewRequest) (int64, error)

	// UpdateStatus sets the played flag of one entry.
	UpdateStatus(ctx context.Context, licenseKey string, queue domain.Queue, id int64, played bool) error

	// UpdateFields merges the provided fields into one entry.
	UpdateFields(ctx context.Context, licenseKey string, queue domain.Queue, id int64, upd domain.RequestUpdate) error

	// Delete removes one entry. Idempotent.
	Delete(ctx context.Context, licenseKey string, queue domain.Queue, id int64) error

	// DeleteAll empties a queue in one operation.
	DeleteAll(ctx context.Context, licenseKey string, queue domain.Queue) error

	// Position estimates the next submission's place in the active queue:
	// unplayed count + 1, or 1 for an empty queue. An estimate, never a
	// reservation.
	Position(ctx context.Context, licenseKey string) (int, error)

	// Transfer moves one entry between the two queues, preserving its id.
	// Returns domain.ErrNotFound, with no writes, when the source entry is
	// absent.
	Transfer(ctx context.Context, licenseKey string, id int64, from, to domain.Queue) error

	// Subscribe opens a live feed on one queue. fn receives the full
	// projected snapshot immediately and again after every change. The
	// returned unsubscribe func stops delivery, releases the underlying
	// watch, and is idempotent.
	Subscribe(ctx context.Context, licenseKey string, queue domain.Queue, fn func([]domain.Request)) (func(), error)

	// SubmitByHandle is the viewer path: resolve the handle, add the request
	// to that tenant's active queue, and read back a position estimate.
	// Returns domain.ErrTenantUnresolved when the handle is unregistered.
	SubmitByHandle(ctx context.Context, handle, username, track string) (*domain.Submission, error)

	// HandleRequestEvent ingests a chat-sourced request event from Kafka.
	HandleRequestEvent(ctx context.Context, event *ingest.RequestEvent) error
}

// RegistryService is the bidirectional handle <-> tenant mapping.
type RegistryService interface {
	// Register validates the handle shape and upserts the forward record and
	// the tenant's reverse pointer. The two writes are not atomic as a pair.
	Register(ctx context.Context, handle, licenseKey, displayName string) error

	// Resolve looks up a handle. Returns (nil, nil) when unregistered; that
	// is an expected outcome, distinct from a transport error.
	Resolve(ctx context.Context, handle string) (*domain.ResolvedHandle, error)

	// IsAvailable reports whether a handle is unclaimed. Advisory only: it
	// is not enforced against concurrent registrations.
	IsAvailable(ctx context.Context, handle string) (bool, error)

	// CurrentHandle reads the tenant's reverse pointer, "" when unset.
	CurrentHandle(ctx context.Context, licenseKey string) (string, error)
}
