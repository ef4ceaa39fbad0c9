package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/peerbeam/internal/protocol"
	"github.com/BioHazard786/peerbeam/internal/signaling"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(10*time.Minute, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health)
	mux.Handle("/ws", ServeWs(hub, log))

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitType reads until a message with the wanted type arrives, skipping
// everything else.
func awaitType(t *testing.T, conn *websocket.Conn, want string) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if msg.Type == want {
			return &msg
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d, want 200", resp.StatusCode)
	}
}

func TestCreateAndJoinOverWebsocket(t *testing.T) {
	srv := startTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	err := alice.WriteJSON(protocol.Message{Type: protocol.TypeCreateRoom, RoomID: "room1", PeerID: "alice"})
	if err != nil {
		t.Fatalf("createRoom write failed: %v", err)
	}
	awaitType(t, alice, protocol.TypeRoomCreated)
	nick := awaitType(t, alice, protocol.TypeNicknameAssigned)

	var np protocol.NicknamePayload
	if err := json.Unmarshal(nick.Payload, &np); err != nil || np.Nickname == "" {
		t.Fatalf("bad nickname payload %s (err %v)", nick.Payload, err)
	}

	err = bob.WriteJSON(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "room1", PeerID: "bob"})
	if err != nil {
		t.Fatalf("joinRoom write failed: %v", err)
	}
	awaitType(t, bob, protocol.TypeRoomJoined)
	awaitType(t, alice, protocol.TypeNewPeer)

	peersMsg := awaitType(t, bob, protocol.TypeAllPeers)
	var peers []protocol.PeerInfo
	if err := json.Unmarshal(peersMsg.Payload, &peers); err != nil {
		t.Fatalf("bad allPeers payload: %v", err)
	}
	if len(peers) != 2 {
		t.Errorf("expected 2 peers, got %d", len(peers))
	}
}

func TestJoinMissingRoomOverWebsocket(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "ghost", PeerID: "alice"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := awaitType(t, conn, protocol.TypeRoomNotFound)
	if msg.RoomID != "ghost" {
		t.Errorf("roomNotFound for %q, want ghost", msg.RoomID)
	}
}

func TestRelayOverWebsocket(t *testing.T) {
	srv := startTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.WriteJSON(protocol.Message{Type: protocol.TypeCreateRoom, RoomID: "room1", PeerID: "alice"})
	awaitType(t, alice, protocol.TypeRoomCreated)
	bob.WriteJSON(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "room1", PeerID: "bob"})
	awaitType(t, bob, protocol.TypeRoomJoined)

	hint := protocol.Hint{Kind: protocol.HintOffer, From: "alice", To: "bob", Data: []byte(`"sdp"`)}
	payload, _ := json.Marshal(hint)
	err := alice.WriteJSON(protocol.Message{Type: protocol.TypeRelay, RoomID: "room1", PeerID: "alice", Payload: payload})
	if err != nil {
		t.Fatalf("relay write failed: %v", err)
	}

	msg := awaitType(t, bob, protocol.TypeRelay)
	if msg.PeerID != "alice" {
		t.Errorf("relay sender %q, want alice", msg.PeerID)
	}
	var got protocol.Hint
	if err := json.Unmarshal(msg.Payload, &got); err != nil || got.Kind != protocol.HintOffer || got.To != "bob" {
		t.Errorf("relay payload did not pass through intact: %+v (err %v)", got, err)
	}
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	srv := startTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.WriteJSON(protocol.Message{Type: protocol.TypeCreateRoom, RoomID: "room1", PeerID: "alice"})
	awaitType(t, alice, protocol.TypeRoomCreated)
	bob.WriteJSON(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "room1", PeerID: "bob"})
	awaitType(t, bob, protocol.TypeRoomJoined)
	awaitType(t, alice, protocol.TypeNewPeer)

	bob.Close()

	msg := awaitType(t, alice, protocol.TypePeerLeft)
	var info protocol.PeerInfo
	if err := json.Unmarshal(msg.Payload, &info); err != nil || info.ID != "bob" {
		t.Errorf("expected peerLeft for bob, got %+v (err %v)", info, err)
	}
}

func TestUnknownMessageRejected(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	conn.WriteJSON(protocol.Message{Type: "teleport", PeerID: "alice"})
	msg := awaitType(t, conn, protocol.TypeError)

	var ep protocol.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil || ep.Error == "" {
		t.Errorf("expected an error payload, got %s (err %v)", msg.Payload, err)
	}
}
