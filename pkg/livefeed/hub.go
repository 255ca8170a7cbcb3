package livefeed

import (
	"context"

	"github.com/NotCoffee418/p1_mini/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const broadcastQueueSize = 8

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:  make(map[*client]bool),
		readings: make(chan *types.MeterReading, broadcastQueueSize),
		log:      log,
	}
}

// Publish queues reading for broadcast. It never blocks, a reading that does
// not fit the queue is dropped.
func (h *Hub) Publish(reading *types.MeterReading) {
	select {
	case h.readings <- reading:
	default:
		h.log.Warn("Broadcast queue full, dropping reading")
	}
}

// Run broadcasts queued readings until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case reading := <-h.readings:
			h.Broadcast(reading)
		}
	}
}

func (h *Hub) Broadcast(reading *types.MeterReading) {
	payload := reading.ToJsonBytes()
	if payload == nil {
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.Debugf("Dropping websocket client %s: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
