package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/pkg/log"
)

// Hub tracks connected websocket clients and the queue feeds they follow.
// A feed is one (tenant, queue) pair; every client on a feed receives the
// full queue snapshot whenever that queue changes, on any instance.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	feeds      map[string]map[string]*Client // feedKey -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *feedMessage
	stop       chan struct{}
	mu         sync.RWMutex
	config     Config
}

// Config holds websocket connection tuning.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

type feedMessage struct {
	feedKey string
	message []byte
}

// NewHub creates a hub. Call Run in a goroutine before registering clients.
func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		feeds:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *feedMessage, 256),
		stop:       make(chan struct{}),
		config:     cfg,
	}
}

// FeedKey builds the feed identifier for a tenant's queue.
func FeedKey(tenantKey string, queue domain.Queue) string {
	return fmt.Sprintf("%s:%s", tenantKey, queue)
}

// Run processes registration and broadcast events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for key, members := range h.feeds {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.feeds, key)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.feeds[msg.feedKey] {
				select {
				case client.Send <- msg.message:
				default:
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for _, client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[string]*Client)
			h.feeds = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and its feed memberships.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinFeed subscribes a client to one queue feed.
func (h *Hub) JoinFeed(client *Client, feedKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.feeds[feedKey]; !ok {
		h.feeds[feedKey] = make(map[string]*Client)
	}
	h.feeds[feedKey][client.ID] = client
	log.L().Info().Str(log.FieldClientID, client.ID).Str("feed", feedKey).Msg("client joined feed")
}

// LeaveFeed unsubscribes a client from one queue feed. Safe when the client
// never joined.
func (h *Hub) LeaveFeed(client *Client, feedKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.feeds[feedKey]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.feeds, feedKey)
		}
	}
	log.L().Info().Str(log.FieldClientID, client.ID).Str("feed", feedKey).Msg("client left feed")
}

// HasFeed reports whether any client follows the feed, so snapshot reads can
// be skipped for feeds nobody watches.
func (h *Hub) HasFeed(feedKey string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds[feedKey]) > 0
}

// BroadcastToFeed sends a message to every client on a feed.
func (h *Hub) BroadcastToFeed(feedKey string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.broadcast <- &feedMessage{feedKey: feedKey, message: data}
	return nil
}

// Stop closes all client channels and exits Run.
func (h *Hub) Stop() {
	close(h.stop)
}
