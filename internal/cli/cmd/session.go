package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/peerconn"
	"github.com/BioHazard786/peerbeam/internal/protocol"
	"github.com/BioHazard786/peerbeam/internal/sigclient"
	"github.com/BioHazard786/peerbeam/internal/utils"
)

const signalTimeout = 30 * time.Second

var (
	errRoomExists   = errors.New("a room with that id already exists")
	errRoomNotFound = errors.New("room not found")
	errTimeout      = errors.New("timed out waiting for the server")
)

// ConnectionContext bundles the coordinator connection with the hint demux
// that individual peer sessions subscribe to.
type ConnectionContext struct {
	Client  *sigclient.Client
	Handler *sigclient.Handler
	Config  *config.Config

	PeerID   string
	RoomID   string
	Nickname string

	// Offers and FileMeta receive broadcast hints; per-peer answer/ICE
	// hints are demuxed into subscriber channels by sender.
	Offers   chan *protocol.Hint
	FileMeta chan *protocol.Hint

	mu   sync.Mutex
	subs map[string]chan *protocol.Hint
}

func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := sigclient.NewClient(cfg.ServerURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	handler := sigclient.NewHandler(client)
	go handler.Start()

	ctx := &ConnectionContext{
		Client:   client,
		Handler:  handler,
		Config:   cfg,
		PeerID:   utils.RandomID(),
		Offers:   make(chan *protocol.Hint, 8),
		FileMeta: make(chan *protocol.Hint, 8),
		subs:     make(map[string]chan *protocol.Hint),
	}
	go ctx.routeHints()
	return ctx, nil
}

func (c *ConnectionContext) Close() {
	c.Client.Close()
}

// routeHints fans relayed hints out: offers and file metadata to their own
// channels, everything else to the per-peer subscription of its sender.
func (c *ConnectionContext) routeHints() {
	for hint := range c.Handler.Relay {
		if hint.To != "" && hint.To != c.PeerID {
			continue
		}
		switch hint.Kind {
		case protocol.HintOffer:
			c.Offers <- hint
		case protocol.HintFileMeta:
			c.FileMeta <- hint
		default:
			select {
			case c.hintsFrom(hint.From) <- hint:
			default:
			}
		}
	}
}

func (c *ConnectionContext) hintsFrom(remoteID string) chan *protocol.Hint {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subs[remoteID]
	if !ok {
		sub = make(chan *protocol.Hint, 64)
		c.subs[remoteID] = sub
	}
	return sub
}

// SendHint relays a hint into the current room.
func (c *ConnectionContext) SendHint(hint *protocol.Hint) {
	hint.From = c.PeerID
	c.Handler.SendHint(c.RoomID, c.PeerID, hint)
}

// CreateRoom asks the coordinator to activate roomID with us as the first
// member.
func (c *ConnectionContext) CreateRoom(roomID string) error {
	c.Client.SendMessage(&protocol.Message{
		Type:   protocol.TypeCreateRoom,
		RoomID: roomID,
		PeerID: c.PeerID,
	})

	select {
	case <-c.Handler.RoomCreated:
		c.RoomID = roomID
		return nil
	case <-c.Handler.RoomExists:
		return errRoomExists
	case msg := <-c.Handler.Errors:
		return errors.New(msg)
	case <-time.After(signalTimeout):
		return errTimeout
	}
}

// JoinRoom adds us to an existing room.
func (c *ConnectionContext) JoinRoom(roomID string) error {
	c.Client.SendMessage(&protocol.Message{
		Type:   protocol.TypeJoinRoom,
		RoomID: roomID,
		PeerID: c.PeerID,
	})

	select {
	case <-c.Handler.RoomJoined:
		c.RoomID = roomID
		return nil
	case <-c.Handler.RoomNotFound:
		return errRoomNotFound
	case msg := <-c.Handler.Errors:
		return errors.New(msg)
	case <-time.After(signalTimeout):
		return errTimeout
	}
}

// AwaitNickname waits for the coordinator's nickname assignment.
func (c *ConnectionContext) AwaitNickname() (string, error) {
	select {
	case nick := <-c.Handler.Nickname:
		c.Nickname = nick
		return nick, nil
	case <-time.After(signalTimeout):
		return "", errTimeout
	}
}

// Leave announces departure so the room empties cleanly before the socket
// closes.
func (c *ConnectionContext) Leave() {
	c.Client.SendMessage(&protocol.Message{
		Type:   protocol.TypeLeave,
		PeerID: c.PeerID,
	})
}

// DialPeer offers a WebRTC connection to remoteID and blocks until the file
// channel opens. The returned cleanup closes the peer connection.
func (c *ConnectionContext) DialPeer(remoteID string) (*peerconn.Channel, func(), error) {
	pc, err := peerconn.New(c.Config)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { pc.Close() }

	dc, err := peerconn.CreateDataChannel(pc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opened := make(chan struct{}, 1)
	dc.OnOpen(func() {
		select {
		case opened <- struct{}{}:
		default:
		}
	})

	c.sendLocalCandidates(pc, remoteID)

	offer, err := peerconn.CreateOffer(pc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	offerJSON, _ := json.Marshal(offer)
	c.SendHint(&protocol.Hint{Kind: protocol.HintOffer, To: remoteID, Data: offerJSON})

	// Answer and trickled candidates keep arriving after the channel opens.
	go c.consumeSignals(pc, remoteID)

	select {
	case <-opened:
		return peerconn.NewChannel(dc), cleanup, nil
	case <-time.After(signalTimeout):
		cleanup()
		return nil, nil, fmt.Errorf("peer %s: connection not established", remoteID)
	}
}

// AnswerPeer responds to a relayed offer. onChannel fires when the sender's
// file channel arrives.
func (c *ConnectionContext) AnswerPeer(remoteID string, offerData json.RawMessage, onChannel func(*pion.DataChannel)) (*pion.PeerConnection, error) {
	pc, err := peerconn.New(c.Config)
	if err != nil {
		return nil, err
	}

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() == peerconn.DataChannelLabel {
			onChannel(dc)
		}
	})

	c.sendLocalCandidates(pc, remoteID)

	var offer pion.SessionDescription
	if err := json.Unmarshal(offerData, &offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("parse offer: %w", err)
	}
	answer, err := peerconn.CreateAnswer(pc, &offer)
	if err != nil {
		pc.Close()
		return nil, err
	}
	answerJSON, _ := json.Marshal(answer)
	c.SendHint(&protocol.Hint{Kind: protocol.HintAnswer, To: remoteID, Data: answerJSON})

	go c.consumeSignals(pc, remoteID)
	return pc, nil
}

func (c *ConnectionContext) sendLocalCandidates(pc *pion.PeerConnection, remoteID string) {
	pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			return
		}
		data, _ := json.Marshal(cand.ToJSON())
		c.SendHint(&protocol.Hint{Kind: protocol.HintICE, To: remoteID, Data: data})
	})
}

func (c *ConnectionContext) consumeSignals(pc *pion.PeerConnection, remoteID string) {
	for hint := range c.hintsFrom(remoteID) {
		switch hint.Kind {
		case protocol.HintAnswer:
			var answer pion.SessionDescription
			if err := json.Unmarshal(hint.Data, &answer); err == nil {
				peerconn.ApplyAnswer(pc, &answer)
			}
		case protocol.HintICE:
			peerconn.AddICECandidate(pc, hint.Data)
		}
	}
}

// LoadConfig resolves flags, env and defaults into a client config.
func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
