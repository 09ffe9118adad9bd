package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djrq/queue-service/internal/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	UpdateChannel string // channel prefix for queue update notifications
}

const defaultUpdateChannel = "djrq:updates"

// redisStore implements Store using Redis.
//
// Each request record is one hash at its own path-shaped key, so a single
// HSET/DEL is the backend's atomic single-path write. Snapshots are a SCAN
// over the queue prefix plus pipelined HGETALLs. Change notification is a
// pub/sub message per mutated queue path; watchers re-snapshot on receipt.
type redisStore struct {
	client        *redis.Client
	updateChannel string

	mu     sync.Mutex
	pubsub map[*redis.PubSub]struct{} // open watches, closed with the store
}

// NewRedisStore creates a Redis-backed store and verifies the connection.
func NewRedisStore(cfg RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
	}

	channel := cfg.UpdateChannel
	if channel == "" {
		channel = defaultUpdateChannel
	}

	return &redisStore{
		client:        client,
		updateChannel: channel,
		pubsub:        make(map[*redis.PubSub]struct{}),
	}, nil
}

func queuePrefix(tenantKey string, queue domain.Queue) string {
	return fmt.Sprintf("licenses/%s/%s/", tenantKey, queue)
}

func requestKey(tenantKey string, queue domain.Queue, id int64) string {
	return fmt.Sprintf("licenses/%s/%s/%d", tenantKey, queue, id)
}

func tenantHandleKey(tenantKey string) string {
	return fmt.Sprintf("licenses/%s/handle", tenantKey)
}

func handleKey(handle string) string {
	return fmt.Sprintf("djHandles/%s", handle)
}

func (s *redisStore) queueChannel(tenantKey string, queue domain.Queue) string {
	return fmt.Sprintf("%s:licenses/%s/%s", s.updateChannel, tenantKey, queue)
}

// encodeRequest builds the hash fields for a record, stripping fields with no
// value; the backend never stores absent fields.
func encodeRequest(req *domain.Request) map[string]interface{} {
	fields := map[string]interface{}{
		"id":        strconv.FormatInt(req.ID, 10),
		"request":   req.Track,
		"played":    strconv.FormatBool(req.Played),
		"timestamp": strconv.FormatInt(req.Timestamp, 10),
	}
	if req.Username != "" {
		fields["username"] = req.Username
	}
	if req.Notes != "" {
		fields["notes"] = req.Notes
	}
	if req.Platform != "" {
		fields["platform"] = string(req.Platform)
	}
	return fields
}

func decodeRequest(fields map[string]string) domain.Request {
	var req domain.Request
	req.ID, _ = strconv.ParseInt(fields["id"], 10, 64)
	req.Username = fields["username"]
	req.Track = fields["request"]
	req.Notes = fields["notes"]
	req.Played, _ = strconv.ParseBool(fields["played"])
	req.Platform = domain.Platform(fields["platform"])
	req.Timestamp, _ = strconv.ParseInt(fields["timestamp"], 10, 64)
	return req
}

func (s *redisStore) PutRequest(ctx context.Context, tenantKey string, queue domain.Queue, req *domain.Request) error {
	key := requestKey(tenantKey, queue, req.ID)

	// Full overwrite: clear the old record and write the new one in a single
	// transaction so readers never see a half-written path.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeRequest(req))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write request %d: %w", req.ID, err)
	}

	s.publishUpdate(ctx, tenantKey, queue)
	return nil
}

func (s *redisStore) MergeRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	encoded := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case bool:
			encoded[k] = strconv.FormatBool(val)
		case int64:
			encoded[k] = strconv.FormatInt(val, 10)
		default:
			encoded[k] = v
		}
	}
	key := requestKey(tenantKey, queue, id)
	if err := s.client.HSet(ctx, key, encoded).Err(); err != nil {
		return fmt.Errorf("failed to merge request %d: %w", id, err)
	}

	s.publishUpdate(ctx, tenantKey, queue)
	return nil
}

func (s *redisStore) GetRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) (*domain.Request, error) {
	fields, err := s.client.HGetAll(ctx, requestKey(tenantKey, queue, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	req := decodeRequest(fields)
	return &req, nil
}

func (s *redisStore) DeleteRequest(ctx context.Context, tenantKey string, queue domain.Queue, id int64) error {
	if err := s.client.Del(ctx, requestKey(tenantKey, queue, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete request %d: %w", id, err)
	}

	s.publishUpdate(ctx, tenantKey, queue)
	return nil
}

func (s *redisStore) Snapshot(ctx context.Context, tenantKey string, queue domain.Queue) (map[string]domain.Request, error) {
	prefix := queuePrefix(tenantKey, queue)

	keys, err := s.scanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue %s: %w", queue, err)
	}
	if len(keys) == 0 {
		return map[string]domain.Request{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue %s: %w", queue, err)
	}

	entries := make(map[string]domain.Request, len(keys))
	for i, key := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue // deleted between scan and read
		}
		entries[key[len(prefix):]] = decodeRequest(fields)
	}
	return entries, nil
}

func (s *redisStore) DeleteAll(ctx context.Context, tenantKey string, queue domain.Queue) error {
	keys, err := s.scanKeys(ctx, queuePrefix(tenantKey, queue)+"*")
	if err != nil {
		return fmt.Errorf("failed to scan queue %s: %w", queue, err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to clear queue %s: %w", queue, err)
		}
	}

	s.publishUpdate(ctx, tenantKey, queue)
	return nil
}

func (s *redisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *redisStore) SetHandleRecord(ctx context.Context, handle string, rec *domain.HandleRecord) error {
	err := s.client.HSet(ctx, handleKey(handle), map[string]interface{}{
		"licenseKey":  rec.LicenseKey,
		"displayName": rec.DisplayName,
		"updatedAt":   strconv.FormatInt(rec.UpdatedAt, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write handle record: %w", err)
	}
	return nil
}

func (s *redisStore) GetHandleRecord(ctx context.Context, handle string) (*domain.HandleRecord, error) {
	fields, err := s.client.HGetAll(ctx, handleKey(handle)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read handle record: %w", err)
	}
	if len(fields) == 0 || fields["licenseKey"] == "" {
		return nil, nil
	}
	rec := &domain.HandleRecord{
		LicenseKey:  fields["licenseKey"],
		DisplayName: fields["displayName"],
	}
	rec.UpdatedAt, _ = strconv.ParseInt(fields["updatedAt"], 10, 64)
	return rec, nil
}

func (s *redisStore) DeleteHandleRecord(ctx context.Context, handle string) error {
	if err := s.client.Del(ctx, handleKey(handle)).Err(); err != nil {
		return fmt.Errorf("failed to delete handle record: %w", err)
	}
	return nil
}

func (s *redisStore) SetTenantHandle(ctx context.Context, tenantKey, handle string) error {
	if err := s.client.Set(ctx, tenantHandleKey(tenantKey), handle, 0).Err(); err != nil {
		return fmt.Errorf("failed to write tenant handle: %w", err)
	}
	return nil
}

func (s *redisStore) GetTenantHandle(ctx context.Context, tenantKey string) (string, error) {
	val, err := s.client.Get(ctx, tenantHandleKey(tenantKey)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read tenant handle: %w", err)
	}
	return val, nil
}

func (s *redisStore) publishUpdate(ctx context.Context, tenantKey string, queue domain.Queue) {
	payload, err := json.Marshal(domain.QueueUpdatePayload{TenantKey: tenantKey, Queue: queue})
	if err != nil {
		return
	}
	// Notification only; watchers re-read the snapshot, so a lost publish
	// costs freshness, not correctness.
	s.client.Publish(ctx, s.queueChannel(tenantKey, queue), payload)
}

func (s *redisStore) Watch(ctx context.Context, tenantKey string, queue domain.Queue) (<-chan struct{}, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.queueChannel(tenantKey, queue))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to open watch: %w", err)
	}

	s.mu.Lock()
	s.pubsub[pubsub] = struct{}{}
	s.mu.Unlock()

	notify := make(chan struct{}, 1)
	go func() {
		defer close(notify)
		for range pubsub.Channel() {
			select {
			case notify <- struct{}{}:
			default: // coalesce, a pending notification already covers this change
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.pubsub, pubsub)
			s.mu.Unlock()
			pubsub.Close()
		})
	}
	return notify, stop, nil
}

func (s *redisStore) Close() error {
	s.mu.Lock()
	for pubsub := range s.pubsub {
		pubsub.Close()
	}
	s.pubsub = make(map[*redis.PubSub]struct{})
	s.mu.Unlock()

	return s.client.Close()
}

var _ Store = (*redisStore)(nil)
