package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/logger"
	"github.com/SudarshanaRao/dream60/internal/metrics"
)

const (
	sendBuffer      = 256
	broadcastBuffer = 1024
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only stream, any origin may watch
	},
}

// Hub fans engine events out to websocket subscribers. Subscribers are
// read-only: nothing they send changes engine state.
type Hub struct {
	log        logger.Logger
	clock      clock.Clock
	metrics    *metrics.Metrics
	clients    map[*Client]bool
	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan events.Event
	auctionID string // empty receives every auction
}

var _ events.Publisher = (*Hub)(nil)

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, clk clock.Clock, m *metrics.Metrics) *Hub {
	return &Hub{
		log:        log,
		clock:      clk,
		metrics:    m,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan events.Event, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// TimeEvent is the server time message clients use to correct their
// countdowns
func TimeEvent(now time.Time) events.Event {
	return events.Event{
		Type: events.TimeSync,
		Payload: map[string]any{
			"now":    now.UTC().Format(time.RFC3339Nano),
			"unixMs": now.UnixMilli(),
		},
		At: now,
	}
}

// Run handles client registration and event delivery until ctx is
// cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mutex.Unlock()
		h.metrics.WSClients.Set(0)
		close(h.done)
		h.log.Info("WebSocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.WSClients.Set(float64(total))
			h.log.Debug("Client connected", "auction_id", client.auctionID, "total_clients", total)

			if now, err := h.clock.Now(); err == nil {
				client.send <- TimeEvent(now)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.WSClients.Set(float64(total))
			h.log.Debug("Client disconnected", "total_clients", total)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event events.Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- event:
		default:
			// Client's send channel is full, unregister
			go func(c *Client) {
				select {
				case h.unregister <- c:
				case <-h.done:
				}
			}(client)
		}
	}
}

func (c *Client) wants(e events.Event) bool {
	return c.auctionID == "" || e.AuctionID == "" || e.AuctionID == c.auctionID
}

// Publish queues an event for delivery. It never blocks the engine: when
// the queue is full the event is dropped.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn("Broadcast queue full, dropping event", "type", e.Type, "auction_id", e.AuctionID)
	}
	return nil
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// StartTimeSync broadcasts the server time every interval until ctx is
// cancelled
func (h *Hub) StartTimeSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Time sync stopped")
			return
		case <-ticker.C:
			now, err := h.clock.Now()
			if err != nil {
				h.log.Warn("Skipping time sync", "error", err)
				continue
			}
			h.Publish(ctx, TimeEvent(now))
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}
		c.hub.log.Debug("Ignoring client message", "bytes", len(message))
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error("Failed to encode event", "type", message.Type, "error", err)
				w.Close()
				continue
			}
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and subscribes the connection to the auction
// named by the auctionId query parameter, or to every auction
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan events.Event, sendBuffer),
		auctionID: r.URL.Query().Get("auctionId"),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
