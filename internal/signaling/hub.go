package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/BioHazard786/peerbeam/internal/protocol"
)

// Inbound is one decoded message together with the connection it arrived on.
type Inbound struct {
	Client *Client
	Msg    *protocol.Message
}

type expiry struct {
	roomID   string
	deadline time.Time
}

// Hub is the coordination protocol handler. It owns no room state of its
// own; it funnels registrations, inbound messages and timer expiries into
// one loop, translates them into registry operations and fans the resulting
// notifications out to the affected clients.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *Inbound

	expired  chan expiry
	registry *Registry
	log      *slog.Logger
}

// NewHub creates a hub whose rooms expire after window of inactivity.
func NewHub(window time.Duration, log *slog.Logger) *Hub {
	h := &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Inbound, 64),
		expired:    make(chan expiry, 64),
		registry:   NewRegistry(window, log),
		log:        log,
	}
	h.registry.OnExpire(func(roomID string, deadline time.Time) {
		h.expired <- expiry{roomID: roomID, deadline: deadline}
	})
	return h
}

// Run processes events until ctx is cancelled. All registry mutations happen
// on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.registry.Close()
			return

		case client := <-h.Register:
			h.log.Debug("client registered", "remote", client.conn.RemoteAddr())

		case client := <-h.Unregister:
			h.dispatch(h.registry.Disconnect(client))
			client.close()

		case in := <-h.Inbound:
			h.handle(in)

		case e := <-h.expired:
			h.dispatch(h.registry.ExpireRoom(e.roomID, e.deadline))
		}
	}
}

func (h *Hub) handle(in *Inbound) {
	msg := in.Msg
	switch msg.Type {
	case protocol.TypeCreateRoom:
		if !h.validRoomRequest(in) {
			return
		}
		h.dispatch(h.registry.CreateRoom(msg.RoomID, msg.PeerID, in.Client))

	case protocol.TypeJoinRoom:
		if !h.validRoomRequest(in) {
			return
		}
		h.dispatch(h.registry.JoinRoom(msg.RoomID, msg.PeerID, in.Client))

	case protocol.TypeRelay:
		if msg.RoomID == "" {
			h.reject(in.Client, "relay requires a room id")
			return
		}
		h.dispatch(h.registry.Relay(msg.RoomID, msg.PeerID, msg.Payload, in.Client))

	case protocol.TypeLeave:
		if msg.PeerID == "" {
			h.reject(in.Client, "leave requires a peer id")
			return
		}
		h.dispatch(h.registry.Leave(msg.PeerID))

	case protocol.TypeRequestNickname:
		if msg.PeerID == "" {
			h.reject(in.Client, "requestNickname requires a peer id")
			return
		}
		h.dispatch(h.registry.RequestNickname(msg.PeerID, in.Client))

	default:
		h.log.Warn("unknown message type", "type", msg.Type)
		h.reject(in.Client, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) validRoomRequest(in *Inbound) bool {
	if in.Msg.RoomID == "" || in.Msg.PeerID == "" {
		h.reject(in.Client, in.Msg.Type+" requires a room id and a peer id")
		return false
	}
	return true
}

func (h *Hub) reject(c *Client, reason string) {
	c.Deliver(&protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.MarshalPayload(protocol.ErrorPayload{Error: reason}),
	})
}

func (h *Hub) dispatch(deliveries []Delivery) {
	for _, d := range deliveries {
		d.To.Deliver(d.Msg)
	}
}
