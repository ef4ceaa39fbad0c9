package signaling

import (
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/BioHazard786/peerbeam/internal/protocol"
)

// Channel is the delivery side of one client's duplex connection. The
// registry never touches the transport itself; it only addresses messages.
type Channel interface {
	Deliver(*protocol.Message)
}

// Delivery is one outbound notification produced by a registry operation.
type Delivery struct {
	To  Channel
	Msg *protocol.Message
}

type member struct {
	ch       Channel
	nickname string
}

type room struct {
	id       string
	members  map[string]*member
	timer    *time.Timer
	deadline time.Time
}

// Registry owns all room and peer state. Its methods are not safe for
// concurrent use; the hub funnels every mutation (including timer expiries)
// through its single event loop, which is what makes per-room transitions
// serializable. Tests call the methods directly from one goroutine.
type Registry struct {
	window time.Duration
	log    *slog.Logger

	rooms     map[string]*room
	byChannel map[Channel]string            // channel identity -> peer id
	peerRooms map[string]map[string]struct{} // peer id -> rooms it belongs to
	nicks     *Allocator

	// onExpire is invoked from a timer goroutine when a room's inactivity
	// window lapses. The callback must route the event back into whatever
	// loop serializes registry calls.
	onExpire func(roomID string, deadline time.Time)

	now func() time.Time
}

func NewRegistry(window time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		window:    window,
		log:       log,
		rooms:     make(map[string]*room),
		byChannel: make(map[Channel]string),
		peerRooms: make(map[string]map[string]struct{}),
		nicks:     NewAllocator(),
		now:       time.Now,
	}
}

// OnExpire sets the inactivity callback. Must be set before any room is
// created; leaving it unset disables timers entirely (useful in tests, which
// drive expiry through ExpireRoom directly).
func (reg *Registry) OnExpire(fn func(roomID string, deadline time.Time)) {
	reg.onExpire = fn
}

// CreateRoom activates a room with the caller as its first member. Fails
// with roomExists if the id is already taken by an active room.
func (reg *Registry) CreateRoom(roomID, peerID string, ch Channel) []Delivery {
	if _, ok := reg.rooms[roomID]; ok {
		return []Delivery{{ch, &protocol.Message{Type: protocol.TypeRoomExists, RoomID: roomID}}}
	}

	rm := &room{id: roomID, members: make(map[string]*member)}
	nick, err := reg.addMember(rm, peerID, ch)
	if err != nil {
		return []Delivery{errorDelivery(ch, err)}
	}
	reg.rooms[roomID] = rm
	reg.touch(rm)
	reg.log.Info("room created", "room", roomID, "peer", peerID)

	out := []Delivery{
		{ch, &protocol.Message{Type: protocol.TypeRoomCreated, RoomID: roomID}},
		{ch, nicknameMessage(nick)},
	}
	return append(out, reg.snapshot(rm)...)
}

// JoinRoom adds the caller to an active room. Fails with roomNotFound
// otherwise.
func (reg *Registry) JoinRoom(roomID, peerID string, ch Channel) []Delivery {
	rm, ok := reg.rooms[roomID]
	if !ok {
		return []Delivery{{ch, &protocol.Message{Type: protocol.TypeRoomNotFound, RoomID: roomID}}}
	}

	nick, err := reg.addMember(rm, peerID, ch)
	if err != nil {
		return []Delivery{errorDelivery(ch, err)}
	}
	reg.touch(rm)
	reg.log.Info("peer joined room", "room", roomID, "peer", peerID)

	joined := protocol.MarshalPayload(protocol.PeerInfo{ID: peerID, Nickname: nick})
	var out []Delivery
	for id, m := range rm.members {
		if id == peerID {
			continue
		}
		out = append(out, Delivery{m.ch, &protocol.Message{Type: protocol.TypeNewPeer, RoomID: roomID, Payload: joined}})
	}
	out = append(out, reg.snapshot(rm)...)
	out = append(out,
		Delivery{ch, &protocol.Message{Type: protocol.TypeRoomJoined, RoomID: roomID}},
		Delivery{ch, nicknameMessage(nick)},
	)
	return out
}

// Leave removes the peer from every room it belongs to. When the last
// membership goes away its nickname is released for reuse.
func (reg *Registry) Leave(peerID string) []Delivery {
	var out []Delivery
	for roomID := range reg.peerRooms[peerID] {
		if rm, ok := reg.rooms[roomID]; ok {
			out = append(out, reg.removeMember(rm, peerID)...)
		}
	}
	reg.dropPeerIfGone(peerID)
	return out
}

// Disconnect handles transport-level closure. The closing transport carries
// no application peer id, so the peer is found through the channel index.
func (reg *Registry) Disconnect(ch Channel) []Delivery {
	peerID, ok := reg.byChannel[ch]
	if !ok {
		return nil
	}
	delete(reg.byChannel, ch)
	reg.log.Info("peer disconnected", "peer", peerID)
	return reg.Leave(peerID)
}

// Relay forwards an opaque payload to every other member of the room and
// resets the inactivity timer. If the room is gone the sender alone is told
// it was cleared.
func (reg *Registry) Relay(roomID, senderID string, payload json.RawMessage, ch Channel) []Delivery {
	rm, ok := reg.rooms[roomID]
	if !ok {
		return []Delivery{{ch, &protocol.Message{Type: protocol.TypeRoomCleared, RoomID: roomID}}}
	}
	reg.touch(rm)

	msg := &protocol.Message{Type: protocol.TypeRelay, RoomID: roomID, PeerID: senderID, Payload: payload}
	var out []Delivery
	for id, m := range rm.members {
		if id == senderID {
			continue
		}
		out = append(out, Delivery{m.ch, msg})
	}
	return out
}

// RequestNickname assigns (or returns) the caller's nickname without any
// room involvement.
func (reg *Registry) RequestNickname(peerID string, ch Channel) []Delivery {
	reg.byChannel[ch] = peerID
	nick, err := reg.nicks.Allocate(peerID)
	if err != nil {
		return []Delivery{errorDelivery(ch, err)}
	}
	return []Delivery{{ch, nicknameMessage(nick)}}
}

// ExpireRoom tears down a room whose inactivity window lapsed. The deadline
// the timer was armed with is compared against the room's current one so
// that an expiry superseded by a reset is ignored.
func (reg *Registry) ExpireRoom(roomID string, deadline time.Time) []Delivery {
	rm, ok := reg.rooms[roomID]
	if !ok || !rm.deadline.Equal(deadline) {
		return nil
	}
	reg.log.Info("room expired", "room", roomID)

	// Lingering members only exist when a disconnect raced the timer; the
	// empty-room invariant otherwise removed the room at the last leave.
	var out []Delivery
	for peerID, m := range rm.members {
		out = append(out, Delivery{m.ch, &protocol.Message{Type: protocol.TypeRoomCleared, RoomID: roomID}})
		if set := reg.peerRooms[peerID]; set != nil {
			delete(set, roomID)
		}
		reg.dropPeerIfGone(peerID)
	}
	delete(reg.rooms, roomID)
	return out
}

// Close stops all timers and drops all state. Deliveries are not produced;
// this is service shutdown, the transports are going away anyway.
func (reg *Registry) Close() {
	for _, rm := range reg.rooms {
		if rm.timer != nil {
			rm.timer.Stop()
		}
	}
	reg.rooms = make(map[string]*room)
	reg.byChannel = make(map[Channel]string)
	reg.peerRooms = make(map[string]map[string]struct{})
	reg.nicks = NewAllocator()
}

// RoomCount reports the number of active rooms.
func (reg *Registry) RoomCount() int {
	return len(reg.rooms)
}

func (reg *Registry) addMember(rm *room, peerID string, ch Channel) (string, error) {
	nick, err := reg.nicks.Allocate(peerID)
	if err != nil {
		return "", err
	}
	rm.members[peerID] = &member{ch: ch, nickname: nick}
	reg.byChannel[ch] = peerID

	set := reg.peerRooms[peerID]
	if set == nil {
		set = make(map[string]struct{})
		reg.peerRooms[peerID] = set
	}
	set[rm.id] = struct{}{}
	return nick, nil
}

// removeMember takes peerID out of rm, notifying the remaining members. The
// last member leaving deletes the room synchronously and cancels its timer.
func (reg *Registry) removeMember(rm *room, peerID string) []Delivery {
	m, ok := rm.members[peerID]
	if !ok {
		return nil
	}
	delete(rm.members, peerID)
	if set := reg.peerRooms[peerID]; set != nil {
		delete(set, rm.id)
	}

	left := protocol.MarshalPayload(protocol.PeerInfo{ID: peerID, Nickname: m.nickname})
	var out []Delivery
	for _, other := range rm.members {
		out = append(out, Delivery{other.ch, &protocol.Message{Type: protocol.TypePeerLeft, RoomID: rm.id, Payload: left}})
	}

	if len(rm.members) == 0 {
		if rm.timer != nil {
			rm.timer.Stop()
		}
		delete(reg.rooms, rm.id)
		reg.log.Info("room deleted", "room", rm.id)
		return out
	}
	return append(out, reg.snapshot(rm)...)
}

func (reg *Registry) dropPeerIfGone(peerID string) {
	if len(reg.peerRooms[peerID]) == 0 {
		delete(reg.peerRooms, peerID)
		reg.nicks.Release(peerID)
	}
}

// touch resets the room's inactivity deadline. A reset always supersedes the
// previously armed firing; the stale timer still fires but carries an old
// deadline that ExpireRoom rejects.
func (reg *Registry) touch(rm *room) {
	rm.deadline = reg.now().Add(reg.window)
	if rm.timer != nil {
		rm.timer.Stop()
	}
	if reg.onExpire == nil {
		return
	}
	id, deadline := rm.id, rm.deadline
	rm.timer = time.AfterFunc(reg.window, func() {
		reg.onExpire(id, deadline)
	})
}

// snapshot produces an allPeers message for every member of the room.
func (reg *Registry) snapshot(rm *room) []Delivery {
	infos := make([]protocol.PeerInfo, 0, len(rm.members))
	for id, m := range rm.members {
		infos = append(infos, protocol.PeerInfo{ID: id, Nickname: m.nickname})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	msg := &protocol.Message{
		Type:    protocol.TypeAllPeers,
		RoomID:  rm.id,
		Payload: protocol.MarshalPayload(infos),
	}
	out := make([]Delivery, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, Delivery{m.ch, msg})
	}
	return out
}

func nicknameMessage(nick string) *protocol.Message {
	return &protocol.Message{
		Type:    protocol.TypeNicknameAssigned,
		Payload: protocol.MarshalPayload(protocol.NicknamePayload{Nickname: nick}),
	}
}

func errorDelivery(ch Channel, err error) Delivery {
	return Delivery{ch, &protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.MarshalPayload(protocol.ErrorPayload{Error: err.Error()}),
	}}
}
