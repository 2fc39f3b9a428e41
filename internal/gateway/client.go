package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/advisor/internal/logging"
)

const writeTimeout = 10 * time.Second

// Client is an authenticated storefront connection.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Socket      *websocket.Conn
	AuthResult  AuthResult
	ConnectedAt time.Time
	// Events limits pushed events to these names; empty means all.
	Events []string

	mu     sync.Mutex
	closed bool
}

// NewClient wraps a connection that passed the handshake.
func NewClient(conn *websocket.Conn, params ConnectParams, authResult AuthResult) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        params.Client,
		Socket:      conn,
		AuthResult:  authResult,
		ConnectedAt: time.Now(),
		Events:      params.Events,
	}
}

// Wants reports whether the client subscribed to event.
func (c *Client) Wants(event string) bool {
	return len(c.Events) == 0 || slices.Contains(c.Events, event)
}

// Send writes a frame under the client's write lock; responses and pushed
// events never interleave on the socket.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if err := c.Socket.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.Socket.WriteJSON(frame)
}

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) RespondError(reqID string, e ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, e))
}

// ReadFrame reads the next frame. Only the read loop may call it.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

// Close closes the connection once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// Hub fans conversation events out to connected storefronts.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), log: log}
}

func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	h.clients[c.ConnID] = c
	h.mu.Unlock()
	h.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Strs("events", c.Events).Msg("client connected")
}

// Leave forgets a client. Unknown ids are ignored.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	_, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		h.log.Info().Str("connId", connID).Msg("client disconnected")
	}
}

func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribers(event string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.Wants(event) {
			out = append(out, c)
		}
	}
	return out
}

// Publish encodes an event once and sends it to every subscriber outside
// the hub lock. A client whose write fails is closed and dropped; a slow
// one delays the rest by at most writeTimeout.
func (h *Hub) Publish(event string, payload any, seq int64) {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return
	}
	for _, c := range h.subscribers(event) {
		err := c.Send(f)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrClientClosed) {
			h.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("dropping client after failed send")
			c.Close()
		}
		h.Leave(c.ConnID)
	}
}

// CloseAll closes and forgets every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
