package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"clubnet_backend/pkg/logger"
	"clubnet_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 32
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	Hub    *NotificationHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// readPump only services control frames; clients never send data on this socket.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]*Client
	mu      sync.RWMutex
}

// NotificationHub pushes events to users connected on this instance. With a Redis
// client it also relays events published on channel by other instances.
type NotificationHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	Redis      *redis.Client
	Channel    string
}

func NewNotificationHub(rdb *redis.Client, channel string) *NotificationHub {
	h := &NotificationHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		Redis:      rdb,
		Channel:    channel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{clients: make(map[uint]*Client)}
	}
	return h
}

func (h *NotificationHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

func (h *NotificationHub) Run() {
	if h.Redis != nil {
		go h.relay()
	}
	for {
		select {
		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if cur, ok := s.clients[client.UserID]; ok && cur == client {
				delete(s.clients, client.UserID)
				close(client.Send)
				monitoring.WSConnections.Dec()
			}
			s.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *NotificationHub) relay() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubsub := h.Redis.Subscribe(ctx, h.Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-h.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.push([]Event{e})
		}
	}
}

// Notify pushes events to connected recipients. Offline recipients are skipped.
func (h *NotificationHub) Notify(_ context.Context, events []Event) error {
	h.push(events)
	countDispatch("ws", events, len(events))
	return nil
}

func (h *NotificationHub) push(events []Event) {
	for _, e := range events {
		payload, err := json.Marshal(WSMessage{Type: "NOTIFICATION", Data: e})
		if err != nil {
			continue
		}
		s := h.getShard(e.RecipientID)
		s.mu.RLock()
		if client, ok := s.clients[e.RecipientID]; ok {
			select {
			case client.Send <- payload:
			default:
				logger.Log.Debug("Dropped notification for slow client", zap.Uint("userId", e.RecipientID))
			}
		}
		s.mu.RUnlock()
	}
}

// add registers client, replacing an older connection of the same user. After Stop
// the client is closed instead; done is checked under the shard lock so Stop's
// sweep cannot miss it.
func (h *NotificationHub) add(client *Client) {
	s := h.getShard(client.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-h.done:
		close(client.Send)
		return
	default:
	}
	if old, ok := s.clients[client.UserID]; ok {
		close(old.Send)
		monitoring.WSConnections.Dec()
	}
	s.clients[client.UserID] = client
	monitoring.WSConnections.Inc()
}

// Stop closes every connection and ends Run.
func (h *NotificationHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		closed := 0
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.Lock()
			for userID, client := range s.clients {
				close(client.Send)
				delete(s.clients, userID)
				closed++
			}
			s.mu.Unlock()
		}
		monitoring.WSConnections.Set(0)
		logger.Log.Info("NotificationHub stopped", zap.Int("closedConnections", closed))
	})
}

func ServeWs(hub *NotificationHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		UserID: userID,
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
