package relay

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	defaultPingPeriod = (pongWait * 9) / 10
	maxEnvelopeLen    = 64 * 1024 // generous: SDP offers are the largest payload
	sendQueueSize     = 256
)

// Client wraps one participant's WebSocket connection. The hub owns its room
// membership; the two pumps own the connection (single reader, single writer).
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	sessionID  string
	peerID     string
	readLimit  int64
	pingPeriod time.Duration

	send chan *envelope.Envelope
}

// NewClient prepares a client for the given connection and identity. The
// caller starts the pumps. pingPeriod must stay under the pong deadline or
// the connection would time out between pings; out-of-range values fall back
// to the default.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID, peerID string, readLimit int64, pingPeriod time.Duration) *Client {
	if readLimit <= 0 {
		readLimit = maxEnvelopeLen
	}
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = defaultPingPeriod
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		sessionID:  sessionID,
		peerID:     peerID,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
		send:       make(chan *envelope.Envelope, sendQueueSize),
	}
}

// Register announces the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump reads envelopes off the socket and forwards them to the hub. It
// stamps the sender id from the authenticated connection, so a client cannot
// spoof another participant. Malformed frames are dropped, never fatal.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("peer", c.peerID).Msg("read error")
			}
			return
		}

		env, err := envelope.DecodeJSON(data)
		if err != nil {
			log.Debug().Err(err).Str("peer", c.peerID).Msg("dropping malformed envelope")
			continue
		}
		env.SenderID = c.peerID

		c.hub.forward <- inbound{env: env, from: c}
	}
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Str("peer", c.peerID).Msg("write error")
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
