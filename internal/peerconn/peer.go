package peerconn

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/transfer"
)

// DataChannelLabel is the label both sides expect on the file channel.
const DataChannelLabel = "file-transfer"

// New creates a peer connection configured with the STUN/TURN servers from
// cfg.
func New(cfg *config.Config) (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, transfer.NewError("create peer connection", err)
	}
	return pc, nil
}

// CreateDataChannel opens the ordered file channel on the offering side.
func CreateDataChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, transfer.NewError("create data channel", err)
	}
	return dc, nil
}

// CreateOffer produces the local session description for a new connection.
func CreateOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, transfer.NewError("create offer", err)
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, transfer.NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

// CreateAnswer applies a remote offer and produces the answering
// description.
func CreateAnswer(pc *pion.PeerConnection, offer *pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := pc.SetRemoteDescription(*offer); err != nil {
		return nil, transfer.NewError("set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, transfer.NewError("create answer", err)
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, transfer.NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

// ApplyAnswer installs the remote side's answer.
func ApplyAnswer(pc *pion.PeerConnection, answer *pion.SessionDescription) error {
	if err := pc.SetRemoteDescription(*answer); err != nil {
		return transfer.NewError("set remote description", err)
	}
	return nil
}

// AddICECandidate feeds a relayed candidate into the connection.
func AddICECandidate(pc *pion.PeerConnection, raw json.RawMessage) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return transfer.NewError("parse ICE candidate", err)
	}
	if err := pc.AddICECandidate(ice); err != nil {
		return transfer.NewError("add ICE candidate", err)
	}
	return nil
}
