package store

import (
	"context"

	"github.com/djrq/queue-service/internal/domain"
)

// Store is the path-addressed realtime backend behind the queue core. Every
// method is a single-path operation: the backend guarantees atomicity per
// path only, never across paths. Multi-path sequences (transfer, handle
// registration) are composed above this interface and carry documented race
// windows.
//
// Paths follow the compatibility addressing scheme:
//
//	licenses/{tenantKey}/requests/{id}    - active queue entry
//	licenses/{tenantKey}/nextStream/{id}  - staged queue entry
//	licenses/{tenantKey}/handle           - reverse pointer, tenant -> handle
//	djHandles/{handle}                    - forward record for handle lookup
type Store interface {
	// PutRequest writes a full request record, overwriting whatever existed
	// at that path.
	PutRequest(ctx context.Context, tenantKey string, queue domain.Queue, req *domain.Request) error

	// MergeRequest writes only the given fields at the record's path. Absent
	// records are created as partial records (backend upsert semantics); the
	// caller owns that sharp edge.
	MergeRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64, fields map[string]interface{}) error

	// GetRequest reads one record. Returns (nil, nil) when absent.
	GetRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) (*domain.Request, error)

	// DeleteRequest removes the record's path. No-op if absent.
	DeleteRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) error

	// Snapshot reads the whole queue as storage key -> record. A missing
	// collection yields an empty map, not an error.
	Snapshot(ctx context.Context, tenantKey string, queue domain.Queue) (map[string]domain.Request, error)

	// DeleteAll replaces the queue collection with an empty one.
	DeleteAll(ctx context.Context, tenantKey string, queue domain.Queue) error

	// SetHandleRecord upserts the forward record djHandles/{handle}.
	SetHandleRecord(ctx context.Context, handle string, rec *domain.HandleRecord) error

	// GetHandleRecord reads the forward record. Returns (nil, nil) when the
	// handle is unregistered; that is an expected outcome, not an error.
	GetHandleRecord(ctx context.Context, handle string) (*domain.HandleRecord, error)

	// DeleteHandleRecord removes a forward record (orphan cleanup).
	DeleteHandleRecord(ctx context.Context, handle string) error

	// SetTenantHandle writes the reverse pointer licenses/{tenantKey}/handle.
	SetTenantHandle(ctx context.Context, tenantKey, handle string) error

	// GetTenantHandle reads the reverse pointer, "" when unset.
	GetTenantHandle(ctx context.Context, tenantKey string) (string, error)

	// Watch opens a change-notification stream for one queue. The channel
	// fires (coalesced) after every mutation of that queue, on any instance;
	// consumers re-read the full snapshot on each notification. The returned
	// stop func releases the watch and is safe to call more than once.
	Watch(ctx context.Context, tenantKey string, queue domain.Queue) (<-chan struct{}, func(), error)

	// Close releases the store connection.
	Close() error
}
