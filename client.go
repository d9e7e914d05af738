package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 512
	maxMessagesPerSec = 300
	maxNameLen        = 16
)

// Client is one participant's WebSocket connection to the authority
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	log        zerolog.Logger
	remoteAddr string

	session   *Session
	vehicleID string

	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client bound to a session
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, sess *Session) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		closed:     make(chan struct{}),
		log:        hub.log.With().Str("component", "client").Str("addr", remoteAddr).Str("session", sess.ID).Logger(),
		remoteAddr: remoteAddr,
		session:    sess,
	}
}

// SendFrame implements Peer. A reliable frame that does not fit closes the connection,
// since the participant's state can no longer be trusted to converge.
func (c *Client) SendFrame(data []byte, d Delivery) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
	}
	if d == Reliable {
		c.log.Warn().Msg("send buffer full on reliable frame, disconnecting")
		c.Close()
	}
	return false
}

// Close implements Peer
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// ReadPump reads frames from the WebSocket connection and submits them to the game
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info().Err(err).Msg("ws error")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn().Msg("rate limit exceeded, disconnecting")
			break
		}

		if msgType != websocket.BinaryMessage {
			continue
		}
		cmd, err := DecodeCommand(message)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad frame")
			continue
		}
		if !cmd.Kind.IsServerCall() {
			c.log.Warn().Stringer("kind", cmd.Kind).Msg("participant sent a non server call")
			continue
		}
		if !c.session.Game.Submit(c.vehicleID, cmd, cmd.Kind.DefaultDelivery()) && cmd.Kind.DefaultDelivery() == Reliable {
			break
		}
	}
}

// WritePump writes queued frames to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// sanitizeName trims a display name to maxNameLen runes, defaulting when empty
func sanitizeName(name string) string {
	r := []rune(name)
	if len(r) > maxNameLen {
		r = r[:maxNameLen]
	}
	if len(r) == 0 {
		return "driver"
	}
	return string(r)
}
