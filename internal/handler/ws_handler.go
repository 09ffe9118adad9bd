package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/hub"
	"github.com/djrq/queue-service/internal/license"
	"github.com/djrq/queue-service/internal/service"
	pkglog "github.com/djrq/queue-service/pkg/log"
)

// WSHandler serves the live queue feed. Clients subscribe per (license,
// queue) pair and receive the full snapshot on every change; there are no
// incremental diffs.
type WSHandler struct {
	hub      *hub.Hub
	queues   service.QueueService
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(h *hub.Hub, queues service.QueueService) *WSHandler {
	return &WSHandler{
		hub:    h,
		queues: queues,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the license key is the authorization, not the origin
			},
		},
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkglog.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(c *hub.Client, message []byte) {
	ctx := context.Background()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		c.SendMessage(domain.NewErrorMessage("invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeSubscribe:
		var msg domain.SubscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid subscribe message"))
			return
		}
		h.handleSubscribe(ctx, c, &msg)

	case domain.MsgTypeUnsubscribe:
		var msg domain.UnsubscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid unsubscribe message"))
			return
		}
		if !msg.Queue.Valid() {
			c.SendMessage(domain.NewErrorMessage("unknown queue"))
			return
		}
		// Safe to repeat or to call after the feed is already gone.
		tk := license.PathKey(license.Normalize(msg.LicenseKey))
		h.hub.LeaveFeed(c, hub.FeedKey(tk, msg.Queue))

	case domain.MsgTypePing:
		c.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		c.SendMessage(domain.NewErrorMessage("unknown message type: " + base.Type))
	}
}

func (h *WSHandler) handleSubscribe(ctx context.Context, c *hub.Client, msg *domain.SubscribeMessage) {
	if !license.Valid(msg.LicenseKey) {
		c.SendMessage(domain.NewErrorMessage("invalid license key"))
		return
	}
	if !msg.Queue.Valid() {
		c.SendMessage(domain.NewErrorMessage("unknown queue"))
		return
	}

	tk := license.PathKey(license.Normalize(msg.LicenseKey))
	h.hub.JoinFeed(c, hub.FeedKey(tk, msg.Queue))

	// Initial snapshot; a missing queue is an empty sequence, not an error.
	requests, counts, err := h.queues.List(ctx, msg.LicenseKey, msg.Queue)
	if err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldTenant, tk).Msg("initial snapshot read failed")
		requests, counts = []domain.Request{}, domain.QueueCounts{}
	}
	c.SendMessage(&domain.SnapshotMessage{
		Type:     domain.MsgTypeSnapshot,
		Queue:    msg.Queue,
		Requests: requests,
		Counts:   counts,
	})
}
