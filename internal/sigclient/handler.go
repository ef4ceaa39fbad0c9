package sigclient

import (
	"encoding/json"

	"github.com/BioHazard786/peerbeam/internal/protocol"
)

// Handler routes incoming coordinator messages to typed channels.
type Handler struct {
	client *Client

	RoomCreated  chan string
	RoomJoined   chan string
	RoomExists   chan string
	RoomNotFound chan string
	RoomCleared  chan string
	Nickname     chan string
	AllPeers     chan []protocol.PeerInfo
	NewPeer      chan protocol.PeerInfo
	PeerLeft     chan protocol.PeerInfo
	Relay        chan *protocol.Hint
	Errors       chan string
}

func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		RoomCreated:  make(chan string, 1),
		RoomJoined:   make(chan string, 1),
		RoomExists:   make(chan string, 1),
		RoomNotFound: make(chan string, 1),
		RoomCleared:  make(chan string, 4),
		Nickname:     make(chan string, 1),
		AllPeers:     make(chan []protocol.PeerInfo, 8),
		NewPeer:      make(chan protocol.PeerInfo, 8),
		PeerLeft:     make(chan protocol.PeerInfo, 8),
		Relay:        make(chan *protocol.Hint, 64),
		Errors:       make(chan string, 4),
	}
}

// notify delivers a broadcast event without blocking. A flow that is not
// interested in a channel never drains it, and an undrained membership
// announcement must not stall the demux that also carries Relay hints.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// Start consumes the client's incoming stream until the connection drops.
// Run it in its own goroutine.
//
// Response channels (room create/join outcomes, Nickname) and Relay are
// written blocking: the request that triggered them is waiting on the other
// end. Broadcast channels use notify and lose events when nobody listens.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Type {
		case protocol.TypeRoomCreated:
			h.RoomCreated <- msg.RoomID
		case protocol.TypeRoomJoined:
			h.RoomJoined <- msg.RoomID
		case protocol.TypeRoomExists:
			h.RoomExists <- msg.RoomID
		case protocol.TypeRoomNotFound:
			h.RoomNotFound <- msg.RoomID
		case protocol.TypeRoomCleared:
			notify(h.RoomCleared, msg.RoomID)

		case protocol.TypeNicknameAssigned:
			var p protocol.NicknamePayload
			if err := json.Unmarshal(msg.Payload, &p); err == nil {
				h.Nickname <- p.Nickname
			}

		case protocol.TypeAllPeers:
			var peers []protocol.PeerInfo
			if err := json.Unmarshal(msg.Payload, &peers); err == nil {
				notify(h.AllPeers, peers)
			}

		case protocol.TypeNewPeer:
			var p protocol.PeerInfo
			if err := json.Unmarshal(msg.Payload, &p); err == nil {
				notify(h.NewPeer, p)
			}

		case protocol.TypePeerLeft:
			var p protocol.PeerInfo
			if err := json.Unmarshal(msg.Payload, &p); err == nil {
				notify(h.PeerLeft, p)
			}

		case protocol.TypeRelay:
			var hint protocol.Hint
			if err := json.Unmarshal(msg.Payload, &hint); err == nil {
				h.Relay <- &hint
			}

		case protocol.TypeError:
			var p protocol.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &p); err == nil {
				notify(h.Errors, p.Error)
			}
		}
	}
}

// SendHint wraps a hint in a relay message addressed to the room.
func (h *Handler) SendHint(roomID, senderID string, hint *protocol.Hint) {
	h.client.SendMessage(&protocol.Message{
		Type:    protocol.TypeRelay,
		RoomID:  roomID,
		PeerID:  senderID,
		Payload: protocol.MarshalPayload(hint),
	})
}
