package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/hub"
	"github.com/djrq/queue-service/internal/service"
	"github.com/djrq/queue-service/internal/store"
)

func newWSTestServer(t *testing.T) (*httptest.Server, service.QueueService, *hub.Hub) {
	t.Helper()

	ms := store.NewMemoryStore()
	registry := service.NewRegistryService(ms, service.RegistryConfig{})
	queues := service.NewQueueService(ms, registry)

	h := hub.NewHub(hub.Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	})
	go h.Run()
	t.Cleanup(h.Stop)

	wsHandler := NewWSHandler(h, queues)
	srv := httptest.NewServer(http.HandlerFunc(wsHandler.HandleWebSocket))
	t.Cleanup(srv.Close)

	return srv, queues, h
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, out interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
}

func TestWSSubscribeReceivesSnapshot(t *testing.T) {
	srv, queues, _ := newWSTestServer(t)

	queues.Add(context.Background(), testLicense, domain.QueueActive, domain.NewRequest{
		Username: "viewer1",
		Track:    "opening track",
	})

	conn := dialWS(t, srv)

	sub := domain.SubscribeMessage{
		Type:       domain.MsgTypeSubscribe,
		LicenseKey: testLicense,
		Queue:      domain.QueueActive,
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}

	var snapshot domain.SnapshotMessage
	readMessage(t, conn, &snapshot)

	if snapshot.Type != domain.MsgTypeSnapshot {
		t.Fatalf("message type = %q", snapshot.Type)
	}
	if snapshot.Queue != domain.QueueActive {
		t.Errorf("queue = %q", snapshot.Queue)
	}
	if len(snapshot.Requests) != 1 || snapshot.Requests[0].Track != "opening track" {
		t.Errorf("requests = %+v", snapshot.Requests)
	}
	if snapshot.Counts.Total != 1 || snapshot.Counts.Unplayed != 1 {
		t.Errorf("counts = %+v", snapshot.Counts)
	}
}

func TestWSSubscribeInvalidLicense(t *testing.T) {
	srv, _, _ := newWSTestServer(t)
	conn := dialWS(t, srv)

	sub := domain.SubscribeMessage{
		Type:       domain.MsgTypeSubscribe,
		LicenseKey: "not-a-license",
		Queue:      domain.QueueActive,
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}

	var msg domain.ErrorMessage
	readMessage(t, conn, &msg)
	if msg.Type != domain.MsgTypeError {
		t.Errorf("message type = %q, want error", msg.Type)
	}
}

func TestWSPingPong(t *testing.T) {
	srv, _, _ := newWSTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(domain.BaseMessage{Type: domain.MsgTypePing}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var msg domain.BaseMessage
	readMessage(t, conn, &msg)
	if msg.Type != domain.MsgTypePong {
		t.Errorf("message type = %q, want pong", msg.Type)
	}
}
