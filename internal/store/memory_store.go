package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/djrq/queue-service/internal/domain"
)

// MemoryStore is an in-process Store for tests and single-node development.
// It reproduces the backend contract exactly: single-path writes, upsert
// merges, whole-snapshot reads, and coalesced change notifications.
type MemoryStore struct {
	mu            sync.RWMutex
	queues        map[string]map[string]domain.Request // bucket -> storage key -> record
	handles       map[string]domain.HandleRecord
	tenantHandles map[string]string
	watchers      map[string][]*memWatcher
}

type memWatcher struct {
	notify chan struct{}
	once   sync.Once
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues:        make(map[string]map[string]domain.Request),
		handles:       make(map[string]domain.HandleRecord),
		tenantHandles: make(map[string]string),
		watchers:      make(map[string][]*memWatcher),
	}
}

func bucketKey(tenantKey string, queue domain.Queue) string {
	return tenantKey + "/" + string(queue)
}

func (s *MemoryStore) bucket(tenantKey string, queue domain.Queue) map[string]domain.Request {
	key := bucketKey(tenantKey, queue)
	if s.queues[key] == nil {
		s.queues[key] = make(map[string]domain.Request)
	}
	return s.queues[key]
}

func (s *MemoryStore) PutRequest(ctx context.Context, tenantKey string, queue domain.Queue, req *domain.Request) error {
	s.mu.Lock()
	s.bucket(tenantKey, queue)[strconv.FormatInt(req.ID, 10)] = *req
	s.mu.Unlock()

	s.notifyWatchers(tenantKey, queue)
	return nil
}

func (s *MemoryStore) MergeRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	s.mu.Lock()
	bucket := s.bucket(tenantKey, queue)
	key := strconv.FormatInt(id, 10)
	// Upsert: merging into an absent path creates a partial record there,
	// same as the real backend. Note the id field stays unset in that case.
	req := bucket[key]
	for k, v := range fields {
		switch k {
		case "request":
			req.Track, _ = v.(string)
		case "notes":
			req.Notes, _ = v.(string)
		case "played":
			req.Played, _ = v.(bool)
		case "timestamp":
			req.Timestamp, _ = v.(int64)
		case "username":
			req.Username, _ = v.(string)
		case "platform":
			if p, ok := v.(string); ok {
				req.Platform = domain.Platform(p)
			}
		}
	}
	bucket[key] = req
	s.mu.Unlock()

	s.notifyWatchers(tenantKey, queue)
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.queues[bucketKey(tenantKey, queue)]
	if bucket == nil {
		return nil, nil
	}
	req, ok := bucket[strconv.FormatInt(id, 10)]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s *MemoryStore) DeleteRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) error {
	s.mu.Lock()
	if bucket := s.queues[bucketKey(tenantKey, queue)]; bucket != nil {
		delete(bucket, strconv.FormatInt(id, 10))
	}
	s.mu.Unlock()

	s.notifyWatchers(tenantKey, queue)
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, tenantKey string, queue domain.Queue) (map[string]domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make(map[string]domain.Request)
	for key, req := range s.queues[bucketKey(tenantKey, queue)] {
		entries[key] = req
	}
	return entries, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context, tenantKey string, queue domain.Queue) error {
	s.mu.Lock()
	delete(s.queues, bucketKey(tenantKey, queue))
	s.mu.Unlock()

	s.notifyWatchers(tenantKey, queue)
	return nil
}

func (s *MemoryStore) SetHandleRecord(ctx context.Context, handle string, rec *domain.HandleRecord) error {
	s.mu.Lock()
	s.handles[handle] = *rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetHandleRecord(ctx context.Context, handle string) (*domain.HandleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.handles[handle]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) DeleteHandleRecord(ctx context.Context, handle string) error {
	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetTenantHandle(ctx context.Context, tenantKey, handle string) error {
	s.mu.Lock()
	s.tenantHandles[tenantKey] = handle
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetTenantHandle(ctx context.Context, tenantKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantHandles[tenantKey], nil
}

func (s *MemoryStore) Watch(ctx context.Context, tenantKey string, queue domain.Queue) (<-chan struct{}, func(), error) {
	w := &memWatcher{notify: make(chan struct{}, 1)}
	key := bucketKey(tenantKey, queue)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], w)
	s.mu.Unlock()

	// The channel is deliberately left open: a racing notifyWatchers may
	// still hold a reference, and consumers exit via their own context.
	stop := func() {
		w.once.Do(func() {
			s.mu.Lock()
			watchers := s.watchers[key]
			for i, other := range watchers {
				if other == w {
					s.watchers[key] = append(watchers[:i], watchers[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
	return w.notify, stop, nil
}

func (s *MemoryStore) notifyWatchers(tenantKey string, queue domain.Queue) {
	s.mu.RLock()
	watchers := make([]*memWatcher, len(s.watchers[bucketKey(tenantKey, queue)]))
	copy(watchers, s.watchers[bucketKey(tenantKey, queue)])
	s.mu.RUnlock()

	for _, w := range watchers {
		select {
		case w.notify <- struct{}{}:
		default: // coalesce
		}
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
