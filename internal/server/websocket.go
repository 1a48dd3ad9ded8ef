package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/salus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Queued updates per subscriber before it counts as slow
	sendBuffer = 4
)

// Update is the message pushed to websocket subscribers after each poll.
type Update struct {
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Devices   []salus.DeviceSummary `json:"devices"`
}

// Hub fans poll results out to websocket subscribers.
// A subscriber whose queue is full is disconnected rather than blocking the poller.
type Hub struct {
	upgrader websocket.Upgrader
	now      func() time.Time

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        []byte
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The bridge is a LAN service without browser sessions to protect
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:         time.Now,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.CloseAll()
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast queues summaries for every subscriber. New subscribers
// receive the most recent broadcast on connect.
func (h *Hub) Broadcast(summaries []salus.DeviceSummary) error {
	if summaries == nil {
		summaries = []salus.DeviceSummary{}
	}
	msg, err := json.Marshal(Update{Type: "devices", Timestamp: h.now().UTC(), Devices: summaries})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			logging.Warn("Dropping slow websocket subscriber",
				zap.String("remote_addr", sub.conn.RemoteAddr().String()),
			)
			delete(h.subscribers, sub)
			sub.close()
		}
	}
	return nil
}

// CloseAll disconnects every subscriber
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		sub.close()
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logging.Debug("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	if h.last != nil {
		sub.send <- h.last
	}
	h.mu.Unlock()

	logging.LogConnection(r.RemoteAddr, "websocket_subscribed")

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
	sub.close()
}

// readPump discards client messages and detects disconnects via pong deadlines.
func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Websocket read error",
					zap.String("remote_addr", sub.conn.RemoteAddr().String()),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
		logging.LogConnection(sub.conn.RemoteAddr().String(), "websocket_closed")
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
