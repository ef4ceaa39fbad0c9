package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/peerbeam/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Relay payloads carry SDP and
	// file metadata, nothing larger.
	maxMessageSize = 64 * 1024

	// Outbound buffer per client; Deliver drops when it is full.
	sendBufferSize = 256
)

// Client wraps a single websocket connection to the coordinator.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *protocol.Message
	log  *slog.Logger
}

// ServeConn attaches an upgraded websocket connection to the hub and starts
// its read and write pumps. The pumps own the connection's lifecycle from
// here on.
func ServeConn(hub *Hub, conn *websocket.Conn, log *slog.Logger) {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan *protocol.Message, sendBufferSize),
		log:  log,
	}
	hub.Register <- c
	go c.WritePump()
	go c.ReadPump()
}

// Deliver queues a message for the client. Notifications are best-effort: a
// client that cannot drain its buffer loses messages rather than stalling
// the hub. Only the hub goroutine may call this.
func (c *Client) Deliver(msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("dropping message for slow client", "type", msg.Type, "remote", c.conn.RemoteAddr())
	}
}

// close shuts the outbound queue, stopping the write pump. Called by the hub
// after the registry has forgotten the channel, so no Deliver can follow.
func (c *Client) close() {
	close(c.send)
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("read error", "err", err)
			}
			break
		}
		c.hub.Inbound <- &Inbound{Client: c, Msg: &msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("write error", "err", err)
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
