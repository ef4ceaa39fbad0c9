package peerconn

import (
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/peerbeam/internal/transfer"
)

const (
	// Backpressure thresholds on the data channel's buffered amount.
	highWaterMark = 8 * 1024 * 1024
	lowWaterMark  = 1 * 1024 * 1024

	sendTimeout  = 60 * time.Second
	drainTimeout = 30 * time.Second
)

// Channel wraps a pion data channel behind the transfer engine's Channel
// interface, blocking sends while the channel's internal buffer is above the
// high watermark.
type Channel struct {
	dc *pion.DataChannel
}

func NewChannel(dc *pion.DataChannel) *Channel {
	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	return &Channel{dc: dc}
}

// Send writes one message, waiting out backpressure first.
func (c *Channel) Send(data []byte) error {
	if !c.IsOpen() {
		return transfer.ErrChannelClosed
	}
	if err := c.waitForWindow(); err != nil {
		return err
	}
	if err := c.dc.Send(data); err != nil {
		return transfer.NewError("send", err)
	}
	return nil
}

func (c *Channel) IsOpen() bool {
	return c.dc.ReadyState() == pion.DataChannelStateOpen
}

func (c *Channel) waitForWindow() error {
	buffered := c.dc.BufferedAmount()
	if buffered < highWaterMark {
		return nil
	}

	wait := make(chan struct{}, 1)
	c.dc.OnBufferedAmountLow(func() {
		select {
		case wait <- struct{}{}:
		default:
		}
	})

	select {
	case <-wait:
		return nil
	case <-time.After(sendTimeout):
		if c.dc.BufferedAmount() < buffered {
			return nil
		}
		return transfer.NewError("send", transfer.ErrBufferTimeout)
	}
}

// WaitForDrain blocks until the buffered amount reaches zero, the channel
// closes, or the drain timeout lapses. Called after the end marker so the
// connection is not torn down under queued chunks.
func (c *Channel) WaitForDrain() {
	start := time.Now()
	for c.dc.BufferedAmount() > 0 && time.Since(start) < drainTimeout {
		if !c.IsOpen() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
