package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		ts.Close()
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn) Update {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var u Update
	if err := json.Unmarshal(msg, &u); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return u
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForSubscribers(t, hub, 1)

	if err := hub.Broadcast(twoDevices()); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	u := readUpdate(t, conn)
	if u.Type != "devices" || len(u.Devices) != 2 || u.Devices[0].ID != "10000001" {
		t.Errorf("update = %+v", u)
	}
}

func TestHub_NewSubscriberGetsLastUpdate(t *testing.T) {
	hub := NewHub()
	if err := hub.Broadcast(twoDevices()); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	if u := readUpdate(t, conn); len(u.Devices) != 2 {
		t.Errorf("replayed update = %+v", u)
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	// A subscriber with no write pump never drains its queue
	slow := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	hub.mu.Lock()
	hub.subscribers[slow] = struct{}{}
	hub.mu.Unlock()

	for i := 0; i <= sendBuffer; i++ {
		if err := hub.Broadcast(twoDevices()); err != nil {
			t.Fatalf("Broadcast() error = %v", err)
		}
	}

	hub.mu.Lock()
	_, still := hub.subscribers[slow]
	hub.mu.Unlock()
	if still {
		t.Error("slow subscriber should have been dropped")
	}

	drained := 0
	for range slow.send {
		drained++
	}
	if drained != sendBuffer {
		t.Errorf("queued %d messages before drop, want %d", drained, sendBuffer)
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForSubscribers(t, hub, 1)

	hub.CloseAll()
	if hub.Subscribers() != 0 {
		t.Errorf("subscribers = %d after CloseAll", hub.Subscribers())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection should be closed by the hub")
	}
}
