// Package events fans research progress events out to WebSocket subscribers
// (the desktop shell, debugging clients). The broadcaster implements
// progress.Sink, so an executor wired to it streams live without knowing
// anything about transports.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"clawdia/pkg/progress"

	"github.com/gorilla/websocket"
)

// client is one connected subscriber.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster upgrades HTTP requests to WebSocket subscriptions and
// broadcasts every emitted event to all of them. A slow subscriber is
// disconnected rather than allowed to stall the executor.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewBroadcaster returns a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local desktop shell only; no cross-origin concern.
				return true
			},
		},
		clients: make(map[string]*client),
	}
}

// Emit implements progress.Sink. Marshal failures are logged and dropped;
// progress is advisory and must never fail an execution.
func (b *Broadcaster) Emit(ev progress.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Events] WARNING: encode event: %v", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		select {
		case c.send <- data:
		default:
			// Buffer full: the subscriber stopped draining. Closing the
			// channel here would race the writer, so just drop.
			log.Printf("[Events] WARNING: dropping event for slow client %s", c.id)
		}
	}
}

// SubscriberCount reports the number of connected clients.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP upgrades the request and registers the connection.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Events] upgrade error: %v", err)
		return
	}

	c := &client{
		id:   fmt.Sprintf("sub_%d", time.Now().UnixNano()),
		conn: conn,
		send: make(chan []byte, 256),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	count := len(b.clients)
	b.mu.Unlock()
	log.Printf("[Events] subscriber connected: %s (%d total)", c.id, count)

	go b.writePump(c)
	go b.readPump(c)
}

// writePump drains the client's send channel onto the wire.
func (b *Broadcaster) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[Events] write error to %s: %v", c.id, err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames and unregisters on disconnect. Reading
// is what surfaces the peer's close.
func (b *Broadcaster) readPump(c *client) {
	defer b.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Events] read error from %s: %v", c.id, err)
			}
			return
		}
	}
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c.id]; ok {
		delete(b.clients, c.id)
		close(c.send)
	}
	count := len(b.clients)
	b.mu.Unlock()
	log.Printf("[Events] subscriber disconnected: %s (%d total)", c.id, count)
}

// Close disconnects every subscriber and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}
