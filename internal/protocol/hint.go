package protocol

import "encoding/json"

// Hint kinds carried inside relay payloads. The coordinator never inspects
// these; they are a convention between peers for setting up the direct
// transfer channel and announcing what is about to be sent over it.
const (
	HintOffer    = "offer"
	HintAnswer   = "answer"
	HintICE      = "ice"
	HintFileMeta = "fileMeta"
)

// Hint is the client-side structure of a relay payload.
type Hint struct {
	Kind string          `json:"kind"`
	From string          `json:"from"`
	To   string          `json:"to,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// FileMeta announces a file the sender is about to transfer.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}
