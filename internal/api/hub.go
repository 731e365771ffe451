package api

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSearchStarted  MessageType = "search_started"
	MessageTypeSearchProgress MessageType = "search_progress"
	MessageTypeSearchFinished MessageType = "search_finished"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// SearchUpdate is the payload of every search message
type SearchUpdate struct {
	SearchID   string      `json:"search_id"`
	Mode       search.Mode `json:"mode"`
	Done       int64       `json:"done"`
	Total      int64       `json:"total"`
	Fraction   float64     `json:"fraction"`
	BestRating *float64    `json:"best_rating,omitempty"`
	Status     string      `json:"status,omitempty"`
	Resident   int         `json:"resident,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans search updates out to connected WebSocket clients. It doubles as
// a search.Observer so searches can feed it directly.
type Hub struct {
	search.NopObserver

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	mu sync.RWMutex
}

var _ search.Observer = (*Hub)(nil)

// NewHub creates a new WebSocket hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns after Close
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().
				Int("total_clients", total).
				Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().
				Int("total_clients", total).
				Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than stall every search
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close stops Run and disconnects every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Broadcast queues a message for all connected clients. It never blocks:
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msgType MessageType, data interface{}) error {
	msgBytes, err := encodeMessage(msgType, data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- msgBytes:
	case <-h.done:
	default:
		log.Debug().Str("type", string(msgType)).Msg("Broadcast queue full, dropping message")
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SearchStarted implements search.Observer
func (h *Hub) SearchStarted(id string, mode search.Mode, total int64) {
	h.broadcastUpdate(MessageTypeSearchStarted, SearchUpdate{SearchID: id, Mode: mode, Total: total})
}

// ProgressUpdated implements search.Observer
func (h *Hub) ProgressUpdated(id string, mode search.Mode, p search.Progress, best *selector.Strategy) {
	update := SearchUpdate{
		SearchID: id,
		Mode:     mode,
		Done:     p.Done,
		Total:    p.Total,
		Fraction: p.Fraction(),
	}
	if best != nil {
		update.BestRating = finiteOrNil(best.Rating())
	}
	h.broadcastUpdate(MessageTypeSearchProgress, update)
}

// SearchFinished implements search.Observer
func (h *Hub) SearchFinished(id string, mode search.Mode, status search.Status, resident int) {
	h.broadcastUpdate(MessageTypeSearchFinished, SearchUpdate{
		SearchID: id,
		Mode:     mode,
		Status:   status.String(),
		Resident: resident,
	})
}

func (h *Hub) broadcastUpdate(msgType MessageType, update SearchUpdate) {
	if err := h.Broadcast(msgType, update); err != nil {
		log.Warn().Err(err).Str("search_id", update.SearchID).Msg("Failed to broadcast search update")
	}
}

func (h *Hub) attach(conn *websocket.Conn) bool {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		return false
	}

	go client.writePump()
	go client.readPump()
	return true
}

func encodeMessage(msgType MessageType, data interface{}) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      dataBytes,
	})
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application-level pings; everything else is ignored
func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Msg("Failed to parse client message")
		return
	}

	if msg.Type != MessageTypePing {
		log.Debug().
			Str("type", string(msg.Type)).
			Msg("Received client message")
		return
	}

	pong, err := encodeMessage(MessageTypePong, struct{}{})
	if err != nil {
		return
	}
	c.hub.reply(c, pong)
}

// reply queues message for one client. Run closes send only while holding
// the write lock and after removing the client, so membership under the read
// lock guarantees the channel is open.
func (h *Hub) reply(c *Client, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
