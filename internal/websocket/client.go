package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client is a single websocket connection owned by an authenticated account.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	AccountID string

	// Buffered channel of outbound messages. Closed by the hub.
	Send chan []byte

	// Replies to the client's own requests. Never closed.
	replies chan []byte
}

// NewClient wraps conn for the given account.
func NewClient(hub *Hub, conn *websocket.Conn, accountID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		AccountID: accountID,
		Send:      make(chan []byte, sendBuffer),
		replies:   make(chan []byte, sendBuffer),
	}
}

// ReadPump reads messages from the connection and hands them to handler
// until the connection fails or is closed, then unregisters the client.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.AccountID).Msg("Websocket closed unexpectedly")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
// It closes the connection once Send is closed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// Reply queues a message for this client. Replies are dropped when the
// client is not keeping up.
func (c *Client) Reply(message []byte) {
	select {
	case c.replies <- message:
	default:
		log.Warn().Str("user_id", c.AccountID).Msg("Dropping websocket reply to slow client")
	}
}
