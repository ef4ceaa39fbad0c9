package transfer

import (
	"errors"
	"io"
	"sync"
)

// DefaultChunkSize is the reference chunk size.
const DefaultChunkSize = 1 * 1024 * 1024

// Channel is the sending side of one peer-to-peer message channel.
type Channel interface {
	Send([]byte) error
}

// FileSender splits one file into tagged chunks and streams them, strictly
// in order, over one peer channel. One FileSender serves exactly one
// (file, recipient) sequence.
type FileSender struct {
	ch        Channel
	fileName  string
	size      int64
	chunkSize int
	progress  int
}

func NewFileSender(ch Channel, fileName string, size int64, chunkSize int) *FileSender {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileSender{ch: ch, fileName: fileName, size: size, chunkSize: chunkSize}
}

// TotalChunks is ceil(size / chunkSize).
func (s *FileSender) TotalChunks() int {
	if s.size == 0 {
		return 0
	}
	return int((s.size + int64(s.chunkSize) - 1) / int64(s.chunkSize))
}

// Send reads the file lazily, one chunk at a time, sends each chunk tagged
// with its index and the total count, then sends the end marker. Progress is
// recomputed after every chunk and reaches 100 with the final chunk.
func (s *FileSender) Send(r io.Reader, onProgress func(pct int)) error {
	total := s.TotalChunks()
	buf := make([]byte, s.chunkSize)
	var sent int64

	for idx := range total {
		want := s.chunkSize
		if rem := s.size - sent; rem < int64(want) {
			want = int(rem)
		}
		if _, err := io.ReadFull(r, buf[:want]); err != nil {
			return NewFileError("read chunk", s.fileName, err)
		}

		data, err := EncodeMessage(MessageTypeChunk, ChunkPayload{
			FileName:    s.fileName,
			Index:       idx,
			TotalChunks: total,
			Chunk:       buf[:want],
		})
		if err != nil {
			return NewFileError("encode chunk", s.fileName, err)
		}
		if err := s.ch.Send(data); err != nil {
			return NewFileError("send chunk", s.fileName, err)
		}

		sent += int64(want)
		s.report(sent, onProgress)
	}

	data, err := EncodeMessage(MessageTypeEnd, EndPayload{FileName: s.fileName})
	if err != nil {
		return NewFileError("encode end marker", s.fileName, err)
	}
	if err := s.ch.Send(data); err != nil {
		return NewFileError("send end marker", s.fileName, err)
	}
	if total == 0 {
		// Empty file: the whole transfer is the end marker.
		s.report(0, onProgress)
	}
	return nil
}

// Progress returns the last reported percentage.
func (s *FileSender) Progress() int {
	return s.progress
}

func (s *FileSender) report(sent int64, onProgress func(int)) {
	pct := 100
	if s.size > 0 {
		pct = int(sent * 100 / s.size)
	}
	if pct < s.progress {
		pct = s.progress
	}
	s.progress = pct
	if onProgress != nil {
		onProgress(pct)
	}
}

// Recipient pairs a peer identity with the channel that reaches it.
type Recipient struct {
	ID      string
	Channel Channel
}

// SendFileToAll runs one independent chunk sequence per recipient, each with
// its own reader, and returns once every sequence has reached its end
// marker. A failed recipient does not stop the others.
func SendFileToAll(recipients []Recipient, open func() (io.ReadCloser, error), fileName string, size int64, chunkSize int, onProgress func(recipientID string, pct int)) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, rcpt := range recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()

			src, err := open()
			if err == nil {
				defer src.Close()
				sender := NewFileSender(rcpt.Channel, fileName, size, chunkSize)
				err = sender.Send(src, func(pct int) {
					if onProgress != nil {
						onProgress(rcpt.ID, pct)
					}
				})
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}
