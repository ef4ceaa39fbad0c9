package protocol

import "encoding/json"

// Client to server message types.
const (
	TypeCreateRoom      = "createRoom"
	TypeJoinRoom        = "joinRoom"
	TypeRelay           = "relay"
	TypeLeave           = "leave"
	TypeRequestNickname = "requestNickname"
)

// Server to client message types.
const (
	TypeRoomCreated      = "roomCreated"
	TypeRoomJoined       = "roomJoined"
	TypeRoomExists       = "roomExists"
	TypeRoomNotFound     = "roomNotFound"
	TypeRoomCleared      = "roomCleared"
	TypeNicknameAssigned = "nicknameAssigned"
	TypeAllPeers         = "allPeers"
	TypeNewPeer          = "newPeer"
	TypePeerLeft         = "peerLeft"
	TypeError            = "error"
)

// Message is the envelope for all websocket traffic between a client and the
// coordinator. The payload shape depends on Type; for relay messages the
// coordinator treats it as opaque bytes.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	PeerID  string          `json:"peerId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PeerInfo identifies one room member as seen by other members.
type PeerInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// NicknamePayload carries an assigned nickname.
type NicknamePayload struct {
	Nickname string `json:"nickname"`
}

// ErrorPayload carries a human-readable error from the coordinator.
type ErrorPayload struct {
	Error string `json:"error"`
}

// MarshalPayload encodes a payload value for embedding in a Message. The
// payload types in this package only contain strings and slices, so encoding
// cannot fail.
func MarshalPayload(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
