package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkglog "github.com/djrq/queue-service/pkg/log"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/ingest"
	"github.com/djrq/queue-service/internal/license"
	"github.com/djrq/queue-service/internal/store"
)

type queueService struct {
	store    store.Store
	registry RegistryService

	// Clock and id source, overridable in tests. Ids are creation time in
	// milliseconds; collision-free only when creations are spaced apart.
	now func() time.Time
}

// NewQueueService creates a QueueService over the given backend store.
// registry is used only by SubmitByHandle.
func NewQueueService(s store.Store, registry RegistryService) QueueService {
	return &queueService{
		store:    s,
		registry: registry,
		now:      time.Now,
	}
}

func tenantKey(licenseKey string) string {
	return license.PathKey(license.Normalize(licenseKey))
}

func (s *queueService) List(ctx context.Context, licenseKey string, queue domain.Queue) ([]domain.Request, domain.QueueCounts, error) {
	entries, err := s.store.Snapshot(ctx, tenantKey(licenseKey), queue)
	if err != nil {
		return nil, domain.QueueCounts{}, err
	}

	requests := domain.FromSnapshot(entries)
	if queue == domain.QueueActive {
		requests = domain.OrderActive(requests)
	}
	return requests, domain.CountsOf(requests), nil
}

func (s *queueService) Add(ctx context.Context, licenseKey string, queue domain.Queue, req domain.NewRequest) (int64, error) {
	now := s.now().UnixMilli()

	// played and timestamp are always set here, regardless of caller input.
	record := &domain.Request{
		ID:        now,
		Username:  req.Username,
		Track:     req.Track,
		Notes:     req.Notes,
		Platform:  req.Platform,
		Played:    false,
		Timestamp: now,
	}
	if err := s.store.PutRequest(ctx, tenantKey(licenseKey), queue, record); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *queueService) UpdateStatus(ctx context.Context, licenseKey string, queue domain.Queue, id int64, played bool) error {
	// Single-field write. A nonexistent id creates a partial record at that
	// path (backend upsert semantics); callers own that sharp edge.
	return s.store.MergeRequest(ctx, tenantKey(licenseKey), queue, id, map[string]interface{}{
		"played":    played,
		"timestamp": s.now().UnixMilli(),
	})
}

func (s *queueService) UpdateFields(ctx context.Context, licenseKey string, queue domain.Queue, id int64, upd domain.RequestUpdate) error {
	fields := map[string]interface{}{
		"timestamp": s.now().UnixMilli(),
	}
	if upd.Track != nil {
		fields["request"] = *upd.Track
	}
	if upd.Notes != nil {
		fields["notes"] = *upd.Notes
	}
	return s.store.MergeRequest(ctx, tenantKey(licenseKey), queue, id, fields)
}

func (s *queueService) Delete(ctx context.Context, licenseKey string, queue domain.Queue, id int64) error {
	return s.store.DeleteRequest(ctx, tenantKey(licenseKey), queue, id)
}

func (s *queueService) DeleteAll(ctx context.Context, licenseKey string, queue domain.Queue) error {
	return s.store.DeleteAll(ctx, tenantKey(licenseKey), queue)
}

func (s *queueService) Position(ctx context.Context, licenseKey string) (int, error) {
	entries, err := s.store.Snapshot(ctx, tenantKey(licenseKey), domain.QueueActive)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 1, nil
	}

	unplayed := 0
	for _, req := range entries {
		if !req.Played {
			unplayed++
		}
	}
	return unplayed + 1, nil
}

func (s *queueService) Transfer(ctx context.Context, licenseKey string, id int64, from, to domain.Queue) error {
	tk := tenantKey(licenseKey)

	req, err := s.store.GetRequest(ctx, tk, from, id)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%w: %d in %s", domain.ErrNotFound, id, from)
	}

	// A moved entry always arrives unplayed, with a fresh timestamp and the
	// same id: it is the same logical entry changing location.
	req.Played = false
	req.Timestamp = s.now().UnixMilli()

	// Write the destination before deleting the source. A crash between the
	// two steps leaves the entry duplicated across both queues, which manual
	// cleanup can recover; the reverse order would lose it outright.
	if err := s.store.PutRequest(ctx, tk, to, req); err != nil {
		return err
	}
	return s.store.DeleteRequest(ctx, tk, from, id)
}

func (s *queueService) Subscribe(ctx context.Context, licenseKey string, queue domain.Queue, fn func([]domain.Request)) (func(), error) {
	tk := tenantKey(licenseKey)

	watchCtx, cancel := context.WithCancel(ctx)
	notify, stopWatch, err := s.store.Watch(watchCtx, tk, queue)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		fn(s.snapshotOrEmpty(watchCtx, tk, queue))
		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				fn(s.snapshotOrEmpty(watchCtx, tk, queue))
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			stopWatch()
			cancel()
		})
	}
	return unsubscribe, nil
}

// snapshotOrEmpty reads and projects the current queue state. Subscriptions
// degrade to an empty sequence on read failure instead of surfacing errors.
func (s *queueService) snapshotOrEmpty(ctx context.Context, tk string, queue domain.Queue) []domain.Request {
	entries, err := s.store.Snapshot(ctx, tk, queue)
	if err != nil {
		if ctx.Err() == nil {
			pkglog.L().Warn().Err(err).Str(pkglog.FieldTenant, tk).Msg("snapshot read failed, delivering empty queue")
		}
		return []domain.Request{}
	}
	return domain.FromSnapshot(entries)
}

func (s *queueService) SubmitByHandle(ctx context.Context, handle, username, track string) (*domain.Submission, error) {
	resolved, err := s.registry.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, domain.ErrTenantUnresolved
	}

	// Position is estimated before the write: unplayed count + 1 is where
	// this submission will land. Concurrent viewers can read the same number;
	// it is an estimate, not a slot reservation. A failed read must not fail
	// the submission.
	position, err := s.Position(ctx, resolved.TenantKey)
	if err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldHandle, handle).Msg("position read failed during submit")
		position = 0
	}

	id, err := s.Add(ctx, resolved.TenantKey, domain.QueueActive, domain.NewRequest{
		Username: username,
		Track:    track,
		Platform: domain.PlatformMobile,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Submission{
		ID:            id,
		QueuePosition: position,
		DJDisplayName: resolved.DisplayName,
	}, nil
}

// HandleRequestEvent feeds a chat-sourced request into the owning DJ's
// active queue. Unknown platforms are recorded as-is; the tag is
// presentation metadata, not an access control.
func (s *queueService) HandleRequestEvent(ctx context.Context, event *ingest.RequestEvent) error {
	if !license.Valid(event.LicenseKey) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidLicense, event.LicenseKey)
	}
	if event.Track == "" {
		return fmt.Errorf("chat request event without track content")
	}

	_, err := s.Add(ctx, event.LicenseKey, domain.QueueActive, domain.NewRequest{
		Username: event.Username,
		Track:    event.Track,
		Platform: domain.Platform(event.Platform),
	})
	return err
}

var _ QueueService = (*queueService)(nil)
var _ ingest.RequestEventHandler = (*queueService)(nil)
