package channel

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
	// clientBuffer is the number of frames queued per connection before the
	// connection is considered stalled and dropped.
	clientBuffer = 32
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket connection belonging to a user. After Register,
// only the hub writes to Conn.
type Client struct {
	ID     string
	UserID string
	Conn   Conn

	send chan []byte
}

type push struct {
	userID  string
	payload any
}

// Hub fans persisted notifications out to the recipient's open websockets.
type Hub struct {
	clients    map[string]map[string]*Client // userID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	pushes     chan push
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pushes:     make(chan push, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and pushes until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAll()
			close(h.done)
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case p := <-h.pushes:
			h.deliver(p)
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Push queues payload for every connection of userID. It never blocks;
// when the buffer is full the push is dropped, the notification itself is
// already persisted.
func (h *Hub) Push(userID string, payload any) {
	select {
	case h.pushes <- push{userID: userID, payload: payload}:
	default:
		log.Printf("[hub] Push buffer full, dropping live update for user %s", userID)
	}
}

func (h *Hub) clientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[string]*Client)
	}
	c.send = make(chan []byte, clientBuffer)
	h.clients[c.UserID][c.ID] = c
	go h.writeLoop(c)
	h.mu.Unlock()

	log.Printf("[hub] Client %s registered for user %s (%d open)", c.ID, c.UserID, h.clientCount(c.UserID))
}

// writeLoop is the only writer of c.Conn. It exits when c.send is closed or
// a write fails.
func (h *Hub) writeLoop(c *Client) {
	for data := range c.send {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("[hub] Failed to set write deadline for client %s: %v", c.ID, err)
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[hub] Failed to send to client %s: %v", c.ID, err)
			_ = c.Conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if registered, ok := conns[c.ID]; ok {
		h.drop(registered)
		log.Printf("[hub] Client %s unregistered", c.ID)
	}
}

// drop removes c and stops its writer. The caller holds h.mu.
func (h *Hub) drop(c *Client) {
	conns := h.clients[c.UserID]
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
}

func (h *Hub) deliver(p push) {
	data, err := json.Marshal(p.payload)
	if err != nil {
		log.Printf("[hub] Failed to marshal push: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients[p.userID] {
		select {
		case c.send <- data:
		default:
			log.Printf("[hub] Client %s is not keeping up, disconnecting", c.ID)
			h.drop(c)
			_ = c.Conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for _, c := range conns {
			close(c.send)
			_ = c.Conn.Close()
		}
	}
	h.clients = make(map[string]map[string]*Client)
}
