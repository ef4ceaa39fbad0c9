package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BioHazard786/peerbeam/internal/protocol"
)

type fakeChannel struct {
	msgs []*protocol.Message
}

func (c *fakeChannel) Deliver(msg *protocol.Message) {
	c.msgs = append(c.msgs, msg)
}

func (c *fakeChannel) lastOfType(t string) *protocol.Message {
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == t {
			return c.msgs[i]
		}
	}
	return nil
}

func newTestRegistry() *Registry {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(10*time.Minute, log)
}

func deliveryTypes(ds []Delivery, to Channel) []string {
	var types []string
	for _, d := range ds {
		if d.To == to {
			types = append(types, d.Msg.Type)
		}
	}
	return types
}

func hasType(ds []Delivery, to Channel, t string) bool {
	for _, typ := range deliveryTypes(ds, to) {
		if typ == t {
			return true
		}
	}
	return false
}

func decodePeers(t *testing.T, msg *protocol.Message) []protocol.PeerInfo {
	t.Helper()
	if msg == nil {
		t.Fatal("expected an allPeers message")
	}
	var peers []protocol.PeerInfo
	if err := json.Unmarshal(msg.Payload, &peers); err != nil {
		t.Fatalf("failed to decode allPeers payload: %v", err)
	}
	return peers
}

func dispatch(ds []Delivery) {
	for _, d := range ds {
		d.To.Deliver(d.Msg)
	}
}

func TestCreateRoomFirstMember(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	ds := reg.CreateRoom("room1", "alice", ch)
	dispatch(ds)

	if !hasType(ds, ch, protocol.TypeRoomCreated) {
		t.Error("expected roomCreated for the creator")
	}
	if !hasType(ds, ch, protocol.TypeNicknameAssigned) {
		t.Error("expected nicknameAssigned for the creator")
	}

	peers := decodePeers(t, ch.lastOfType(protocol.TypeAllPeers))
	if len(peers) != 1 {
		t.Fatalf("expected 1 peer in snapshot, got %d", len(peers))
	}
	if peers[0].ID != "alice" {
		t.Errorf("expected alice, got %s", peers[0].ID)
	}
	if peers[0].Nickname == "" {
		t.Error("expected a non-empty nickname")
	}
}

func TestCreateRoomDuplicate(t *testing.T) {
	reg := newTestRegistry()
	chA := &fakeChannel{}
	chB := &fakeChannel{}

	reg.CreateRoom("room1", "alice", chA)
	ds := reg.CreateRoom("room1", "bob", chB)

	if len(ds) != 1 || ds[0].Msg.Type != protocol.TypeRoomExists {
		t.Fatalf("expected a single roomExists delivery, got %v", ds)
	}
	if reg.RoomCount() != 1 {
		t.Errorf("expected 1 room, got %d", reg.RoomCount())
	}
	if _, ok := reg.peerRooms["bob"]; ok {
		t.Error("failed create must not add bob to any room")
	}
	if _, ok := reg.nicks.Nickname("bob"); ok {
		t.Error("failed create must not assign bob a nickname")
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	ds := reg.JoinRoom("ghost", "alice", ch)

	if len(ds) != 1 || ds[0].Msg.Type != protocol.TypeRoomNotFound {
		t.Fatalf("expected a single roomNotFound delivery, got %v", ds)
	}
	if reg.RoomCount() != 0 {
		t.Errorf("expected no rooms, got %d", reg.RoomCount())
	}
}

func TestJoinRoomNotifications(t *testing.T) {
	reg := newTestRegistry()
	chA := &fakeChannel{}
	chB := &fakeChannel{}

	dispatch(reg.CreateRoom("room1", "alice", chA))
	ds := reg.JoinRoom("room1", "bob", chB)
	dispatch(ds)

	if !hasType(ds, chA, protocol.TypeNewPeer) {
		t.Error("existing member should be told about the joiner")
	}
	if !hasType(ds, chB, protocol.TypeRoomJoined) {
		t.Error("joiner should get roomJoined")
	}
	if !hasType(ds, chB, protocol.TypeNicknameAssigned) {
		t.Error("joiner should get a nickname")
	}

	peers := decodePeers(t, chB.lastOfType(protocol.TypeAllPeers))
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers in snapshot, got %d", len(peers))
	}
}

func TestMembershipTracksJoinsAndLeaves(t *testing.T) {
	reg := newTestRegistry()
	chA, chB, chC := &fakeChannel{}, &fakeChannel{}, &fakeChannel{}

	dispatch(reg.CreateRoom("room1", "alice", chA))
	dispatch(reg.JoinRoom("room1", "bob", chB))
	dispatch(reg.JoinRoom("room1", "carol", chC))
	dispatch(reg.Leave("bob"))

	peers := decodePeers(t, chA.lastOfType(protocol.TypeAllPeers))
	got := map[string]bool{}
	for _, p := range peers {
		got[p.ID] = true
	}
	if len(got) != 2 || !got["alice"] || !got["carol"] {
		t.Errorf("expected membership {alice, carol}, got %v", got)
	}
	if !hasTypeIn(chA.msgs, protocol.TypePeerLeft) {
		t.Error("remaining member should have seen peerLeft")
	}
}

func hasTypeIn(msgs []*protocol.Message, t string) bool {
	for _, m := range msgs {
		if m.Type == t {
			return true
		}
	}
	return false
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	reg.CreateRoom("room1", "alice", ch)
	reg.Leave("alice")

	if reg.RoomCount() != 0 {
		t.Fatalf("expected room deleted, got %d rooms", reg.RoomCount())
	}

	// The id is free again.
	ds := reg.CreateRoom("room1", "bob", &fakeChannel{})
	if hasTypeAny(ds, protocol.TypeRoomExists) {
		t.Error("room id should be reusable after the last member leaves")
	}
}

func hasTypeAny(ds []Delivery, t string) bool {
	for _, d := range ds {
		if d.Msg.Type == t {
			return true
		}
	}
	return false
}

func TestNicknamesUniqueAndReleased(t *testing.T) {
	reg := newTestRegistry()
	chA, chB := &fakeChannel{}, &fakeChannel{}

	reg.CreateRoom("room1", "alice", chA)
	reg.JoinRoom("room1", "bob", chB)

	nickA, _ := reg.nicks.Nickname("alice")
	nickB, _ := reg.nicks.Nickname("bob")
	if nickA == "" || nickB == "" {
		t.Fatal("both peers should hold nicknames")
	}
	if nickA == nickB {
		t.Errorf("live peers must have distinct nicknames, both got %s", nickA)
	}

	reg.Leave("alice")
	if _, ok := reg.nicks.Nickname("alice"); ok {
		t.Error("leaving the last room should release the nickname")
	}
	if _, ok := reg.nicks.Nickname("bob"); !ok {
		t.Error("bob's nickname should be unaffected")
	}
}

func TestNicknameSurvivesRoomHopping(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	reg.CreateRoom("room1", "alice", ch)
	reg.CreateRoom("room2", "alice", ch)
	nick, _ := reg.nicks.Nickname("alice")

	dispatch(reg.Leave("alice")) // leaves both; full departure releases
	if _, ok := reg.nicks.Nickname("alice"); ok {
		t.Fatal("nickname should be released after leaving everywhere")
	}

	// Hop: member of two rooms, drop one, nickname stays.
	reg.CreateRoom("room1", "alice", ch)
	reg.CreateRoom("room2", "alice", ch)
	nick, _ = reg.nicks.Nickname("alice")
	rm := reg.rooms["room1"]
	dispatch(reg.removeMember(rm, "alice"))
	reg.dropPeerIfGone("alice")

	if got, ok := reg.nicks.Nickname("alice"); !ok || got != nick {
		t.Errorf("nickname should survive while a membership remains, got %q ok=%v", got, ok)
	}
}

func TestDisconnectByChannel(t *testing.T) {
	reg := newTestRegistry()
	chA, chB := &fakeChannel{}, &fakeChannel{}

	reg.CreateRoom("room1", "alice", chA)
	reg.JoinRoom("room1", "bob", chB)

	ds := reg.Disconnect(chA)
	dispatch(ds)

	left := chB.lastOfType(protocol.TypePeerLeft)
	if left == nil {
		t.Fatal("remaining member should be notified of the disconnect")
	}
	var info protocol.PeerInfo
	if err := json.Unmarshal(left.Payload, &info); err != nil || info.ID != "alice" {
		t.Errorf("expected peerLeft for alice, got %+v (err %v)", info, err)
	}
	if _, ok := reg.nicks.Nickname("alice"); ok {
		t.Error("disconnect should release the nickname")
	}
}

func TestDisconnectUnknownChannel(t *testing.T) {
	reg := newTestRegistry()

	if ds := reg.Disconnect(&fakeChannel{}); ds != nil {
		t.Errorf("unknown channel should be a no-op, got %v", ds)
	}
}

func TestRelayForwardsToOthersOnly(t *testing.T) {
	reg := newTestRegistry()
	chA, chB, chC := &fakeChannel{}, &fakeChannel{}, &fakeChannel{}

	reg.CreateRoom("room1", "alice", chA)
	reg.JoinRoom("room1", "bob", chB)
	reg.JoinRoom("room1", "carol", chC)

	payload := json.RawMessage(`{"kind":"fileMeta"}`)
	ds := reg.Relay("room1", "alice", payload, chA)
	dispatch(ds)

	if hasType(ds, chA, protocol.TypeRelay) {
		t.Error("sender must not receive its own relay")
	}
	for name, ch := range map[string]*fakeChannel{"bob": chB, "carol": chC} {
		msg := ch.lastOfType(protocol.TypeRelay)
		if msg == nil {
			t.Fatalf("%s should have received the relay", name)
		}
		if string(msg.Payload) != string(payload) {
			t.Errorf("payload must pass through opaque, got %s", msg.Payload)
		}
		if msg.PeerID != "alice" {
			t.Errorf("relay should carry the sender id, got %s", msg.PeerID)
		}
	}
}

func TestRelayOnMissingRoom(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	ds := reg.Relay("ghost", "alice", nil, ch)

	if len(ds) != 1 || ds[0].Msg.Type != protocol.TypeRoomCleared {
		t.Fatalf("sender should be told the room was cleared, got %v", ds)
	}
}

func TestRelayResetsDeadline(t *testing.T) {
	reg := newTestRegistry()
	base := time.Now()
	reg.now = func() time.Time { return base }

	ch := &fakeChannel{}
	reg.CreateRoom("room1", "alice", ch)
	first := reg.rooms["room1"].deadline

	reg.now = func() time.Time { return base.Add(3 * time.Minute) }
	reg.Relay("room1", "alice", nil, ch)

	second := reg.rooms["room1"].deadline
	if !second.After(first) {
		t.Errorf("relay must reset the deadline: %v -> %v", first, second)
	}
}

func TestExpireRoom(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	reg.CreateRoom("room1", "alice", ch)
	deadline := reg.rooms["room1"].deadline

	ds := reg.ExpireRoom("room1", deadline)
	dispatch(ds)

	if reg.RoomCount() != 0 {
		t.Error("expired room should be deleted")
	}
	if ch.lastOfType(protocol.TypeRoomCleared) == nil {
		t.Error("lingering member should be told the room was cleared")
	}
	if _, ok := reg.nicks.Nickname("alice"); ok {
		t.Error("expiry should release the nickname of a fully departed peer")
	}
}

func TestExpireRoomStaleDeadlineIgnored(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	reg.CreateRoom("room1", "alice", ch)
	stale := reg.rooms["room1"].deadline.Add(-time.Second)

	if ds := reg.ExpireRoom("room1", stale); ds != nil {
		t.Errorf("stale expiry must be ignored, got %v", ds)
	}
	if reg.RoomCount() != 1 {
		t.Error("room should survive a stale expiry")
	}
}

func TestExpireUnknownRoom(t *testing.T) {
	reg := newTestRegistry()

	if ds := reg.ExpireRoom("ghost", time.Now()); ds != nil {
		t.Errorf("expiring a missing room should be a no-op, got %v", ds)
	}
}

func TestRequestNickname(t *testing.T) {
	reg := newTestRegistry()
	ch := &fakeChannel{}

	ds := reg.RequestNickname("alice", ch)
	dispatch(ds)

	msg := ch.lastOfType(protocol.TypeNicknameAssigned)
	if msg == nil {
		t.Fatal("expected a nicknameAssigned message")
	}
	var p protocol.NicknamePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Nickname == "" {
		t.Errorf("expected a nickname payload, got %s (err %v)", msg.Payload, err)
	}

	// Same peer asks again: stable assignment.
	reg.RequestNickname("alice", ch)
	second := ch.lastOfType(protocol.TypeNicknameAssigned)
	if string(second.Payload) != string(msg.Payload) {
		t.Error("repeated requests should return the same nickname")
	}
}
