// Package pubsub fans queue-change notifications out to local websocket
// clients. Mutations on any instance publish to Redis Pub/Sub; each instance
// re-reads the changed queue and broadcasts the fresh snapshot, so all
// connected clients converge without polling.
package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/hub"
	"github.com/djrq/queue-service/internal/service"
	pkglog "github.com/djrq/queue-service/pkg/log"
)

// Subscriber listens on the queue-update pattern and rebroadcasts snapshots.
type Subscriber struct {
	client  *redis.Client
	pattern string
	hub     *hub.Hub
	queues  service.QueueService
	doneCh  chan struct{}
}

// NewSubscriber creates a subscriber over a dedicated Redis connection (a
// connection in subscriber mode cannot run other commands).
func NewSubscriber(client *redis.Client, channelPrefix string, h *hub.Hub, queues service.QueueService) *Subscriber {
	if channelPrefix == "" {
		channelPrefix = "djrq:updates"
	}
	return &Subscriber{
		client:  client,
		pattern: channelPrefix + ":*",
		hub:     h,
		queues:  queues,
		doneCh:  make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes and rebroadcasts until ctx is done. Reconnects on receive
// errors.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Msg("queue pubsub subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, s.pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, payload string) {
	l := pkglog.L()

	var update domain.QueueUpdatePayload
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		l.Warn().Err(err).Msg("queue pubsub: invalid payload")
		return
	}
	if update.TenantKey == "" || !update.Queue.Valid() {
		return
	}

	feedKey := hub.FeedKey(update.TenantKey, update.Queue)
	if !s.hub.HasFeed(feedKey) {
		return
	}

	requests, counts, err := s.queues.List(ctx, update.TenantKey, update.Queue)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldTenant, update.TenantKey).Msg("queue pubsub: snapshot read failed")
		return
	}

	msg := &domain.SnapshotMessage{
		Type:     domain.MsgTypeSnapshot,
		Queue:    update.Queue,
		Requests: requests,
		Counts:   counts,
	}
	if err := s.hub.BroadcastToFeed(feedKey, msg); err != nil {
		l.Error().Err(err).Str(pkglog.FieldTenant, update.TenantKey).Msg("queue pubsub: broadcast error")
	}
}
