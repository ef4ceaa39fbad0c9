package transfer

import "github.com/vmihailenco/msgpack/v5"

const (
	MessageTypeChunk = "chunk"
	MessageTypeEnd   = "end"
)

// Message represents all peer-to-peer channel messages.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// ChunkPayload carries one slice of a file. TotalChunks rides on every chunk
// so the receiver can size its buffer and place slices that arrive out of
// order.
type ChunkPayload struct {
	FileName    string `msgpack:"fileName"`
	Index       int    `msgpack:"index"`
	TotalChunks int    `msgpack:"totalChunks"`
	Chunk       []byte `msgpack:"chunk"`
}

// EndPayload terminates a file's chunk sequence.
type EndPayload struct {
	FileName string `msgpack:"fileName"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// EncodeMessage marshals a typed payload into ready-to-send channel bytes.
func EncodeMessage(t string, payload any) ([]byte, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}
