package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inline file payloads are base64 of up to 10 MiB, so the read limit
	// leaves headroom for the encoding overhead plus the envelope.
	maxMessageSize = 15 << 20
)

// Conn is the slice of the websocket connection the gateway and client
// drive. *websocket.Conn satisfies it; tests substitute a scripted fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one authenticated connection. All data writes funnel through
// Send so the write pump is the only writer; close frames go out via
// WriteControl, which is safe alongside it.
type Client struct {
	ID       uuid.UUID
	UserID   uint
	Username string
	Conn     Conn
	Send     chan []byte
}

func NewClient(conn Conn, userID uint, username string) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
	}
}

// WritePump drains Send and keeps the connection alive with pings. It owns
// the connection teardown for the write side.
func (c *Client) WritePump() {
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

// enqueue hands data to the write pump without blocking; a full buffer drops
// the event for this subscriber.
func (c *Client) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Printf("Client %s send buffer full, dropping event", c.ID)
	}
}

func (c *Client) SendEvent(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal event for client %s: %v", c.ID, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) SendError(err error) {
	c.SendEvent(NewErrorEvent(err))
}

// CloseWithCode sends a close frame and tears the connection down.
func (c *Client) CloseWithCode(code int, reason string) {
	closeConn(c.Conn, code, reason)
}

func closeConn(conn Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
