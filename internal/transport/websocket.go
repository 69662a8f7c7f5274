package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Listener is notified when a player's presence changes. The match
// coordinator uses these callbacks to drive ready-check cancellation and
// the reconnect clock.
type Listener interface {
	HandleConnect(userID string)
	HandleDisconnect(userID string)
}

// Hub maintains the set of active clients keyed by user and routes
// messages to them. It implements the transport interface the services
// depend on.
type Hub struct {
	log        logger.Logger
	clients    map[string]map[*Client]bool // userID -> connections
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	listener   Listener
}

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan models.WSMessage
}

// New creates a new Hub instance
func New(log logger.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan models.WSMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetListener wires the presence listener. Must be called before Start;
// the hub and the coordinator depend on each other, so the listener
// cannot be a constructor argument.
func (h *Hub) SetListener(l Listener) {
	h.listener = l
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// run handles client registration/unregistration and broadcasting
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			conns := h.clients[client.userID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.userID] = conns
			}
			first := len(conns) == 0
			conns[client] = true
			h.mutex.Unlock()
			h.log.Debug("client connected", "user", client.userID, "first", first)

			if first && h.listener != nil {
				go h.listener.HandleConnect(client.userID)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			last := false
			if conns, ok := h.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(h.clients, client.userID)
					last = true
				}
			}
			h.mutex.Unlock()
			h.log.Debug("client disconnected", "user", client.userID, "last", last)

			if last && h.listener != nil {
				go h.listener.HandleDisconnect(client.userID)
			}

		case message := <-h.broadcast:
			h.mutex.RLock()
			for _, conns := range h.clients {
				for client := range conns {
					h.trySend(client, message)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// trySend queues a message for one client, dropping the client if its
// buffer is full.
func (h *Hub) trySend(client *Client, msg models.WSMessage) {
	select {
	case client.send <- msg:
	default:
		go func(c *Client) {
			h.unregister <- c
		}(client)
	}
}

// SendToUser delivers a message to every open connection of one user
func (h *Hub) SendToUser(userID string, msg models.WSMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients[userID] {
		h.trySend(client, msg)
	}
}

// SendToUsers delivers a message to several users
func (h *Hub) SendToUsers(userIDs []string, msg models.WSMessage) {
	for _, id := range userIDs {
		h.SendToUser(id, msg)
	}
}

// IsUserOnline reports whether a user has at least one open connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID]) > 0
}

// OnlineCount returns the number of distinct connected users
func (h *Hub) OnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage sends a message to all connected clients
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	h.broadcast <- models.WSMessage{
		Type:    msgType,
		Payload: payload,
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket error", "user", c.userID, "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("received message", "user", c.userID, "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, _ := json.Marshal(message)
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from clients. The connecting player
// identifies via the user_id query parameter.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan models.WSMessage, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
