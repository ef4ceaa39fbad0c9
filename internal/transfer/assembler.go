package transfer

import (
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// File is a fully reassembled transfer result.
type File struct {
	Name string
	Data []byte
}

type session struct {
	total    int
	slots    [][]byte
	received int
	progress int
}

// Assembler rebuilds files from chunk messages arriving over one peer's
// channel. Sessions are keyed by file name; the caller keeps one Assembler
// per sending peer. Chunks may arrive in any order and duplicates are
// ignored.
//
// Safe for concurrent use: chunks are delivered on the data channel's
// callback goroutine while room events may discard sessions from another.
type Assembler struct {
	mu         sync.Mutex
	sessions   map[string]*session
	onProgress func(fileName string, pct int)
}

func NewAssembler() *Assembler {
	return &Assembler{sessions: make(map[string]*session)}
}

// SetProgressFunc registers a callback invoked after every chunk arrival.
// Reported percentages are monotonically non-decreasing per file.
func (a *Assembler) SetProgressFunc(fn func(fileName string, pct int)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onProgress = fn
}

// HandleMessage decodes one raw channel message. A completed file is
// returned on its end marker; chunk messages return (nil, nil). Messages of
// unknown type are ignored.
func (a *Assembler) HandleMessage(data []byte) (*File, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, NewError("parse message", err)
	}

	switch msg.Type {
	case MessageTypeChunk:
		var p ChunkPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, NewError("decode chunk", err)
		}
		return nil, a.handleChunk(p)

	case MessageTypeEnd:
		var p EndPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, NewError("decode end marker", err)
		}
		return a.handleEnd(p)
	}
	return nil, nil
}

func (a *Assembler) handleChunk(p ChunkPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p.TotalChunks <= 0 || p.Index < 0 || p.Index >= p.TotalChunks {
		delete(a.sessions, p.FileName)
		return NewFileError("place chunk", p.FileName,
			fmt.Errorf("%w: index %d of %d", ErrProtocolViolation, p.Index, p.TotalChunks))
	}

	sess, ok := a.sessions[p.FileName]
	if !ok {
		sess = &session{total: p.TotalChunks, slots: make([][]byte, p.TotalChunks)}
		a.sessions[p.FileName] = sess
	}
	if p.TotalChunks != sess.total {
		delete(a.sessions, p.FileName)
		return NewFileError("place chunk", p.FileName,
			fmt.Errorf("%w: total changed from %d to %d", ErrProtocolViolation, sess.total, p.TotalChunks))
	}

	if sess.slots[p.Index] == nil {
		sess.slots[p.Index] = append([]byte(nil), p.Chunk...)
		sess.received++
	}

	if pct := sess.received * 100 / sess.total; pct > sess.progress {
		sess.progress = pct
	}
	if a.onProgress != nil {
		a.onProgress(p.FileName, sess.progress)
	}
	return nil
}

// handleEnd concatenates the buffered chunks strictly by index order. An end
// marker with any slot still empty is a protocol violation; the session is
// dropped and no result is produced. An end marker with no session at all is
// a zero-byte file.
func (a *Assembler) handleEnd(p EndPayload) (*File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess, ok := a.sessions[p.FileName]
	if !ok {
		return &File{Name: p.FileName}, nil
	}
	delete(a.sessions, p.FileName)

	if sess.received != sess.total {
		return nil, NewFileError("assemble", p.FileName,
			fmt.Errorf("%w: %d of %d chunks received", ErrProtocolViolation, sess.received, sess.total))
	}

	var size int
	for _, slot := range sess.slots {
		size += len(slot)
	}
	data := make([]byte, 0, size)
	for _, slot := range sess.slots {
		data = append(data, slot...)
	}
	return &File{Name: p.FileName, Data: data}, nil
}

// Progress returns the file's current percentage, 0 if unknown.
func (a *Assembler) Progress(fileName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sess, ok := a.sessions[fileName]; ok {
		return sess.progress
	}
	return 0
}

// Pending reports how many partial sessions are buffered.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Discard drops all partial sessions. Called when the peer channel is torn
// down; abandoned transfers emit nothing.
func (a *Assembler) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = make(map[string]*session)
}
