package signaling

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
)

// maxAllocateAttempts caps the resample loop. With 24 adjectives, 24 nouns
// and a 4-digit suffix the space holds ~57.6M combinations, so hitting the
// cap means the used-set is pathologically full.
const maxAllocateAttempts = 10000

// ErrAllocationExhausted is returned when no free nickname could be found
// within the attempt cap.
var ErrAllocationExhausted = errors.New("nickname space exhausted")

// Allocator hands out collision-free display nicknames of the form
// AdjectiveAdjectiveNoun0000. A peer keeps its nickname across room hops;
// Release returns it to the pool once the peer is gone everywhere.
type Allocator struct {
	mu     sync.Mutex
	used   map[string]struct{}
	byPeer map[string]string
}

func NewAllocator() *Allocator {
	return &Allocator{
		used:   make(map[string]struct{}),
		byPeer: make(map[string]string),
	}
}

// Allocate returns the peer's existing nickname, or samples a fresh unique
// one. The uniqueness check and the insert into the used-set happen under one
// lock, so two concurrent callers can never be handed the same string.
func (a *Allocator) Allocate(peerID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if nick, ok := a.byPeer[peerID]; ok {
		return nick, nil
	}

	for range maxAllocateAttempts {
		nick := fmt.Sprintf("%s%s%s%04d",
			adjectives[randomIndex(len(adjectives))],
			adjectives[randomIndex(len(adjectives))],
			nouns[randomIndex(len(nouns))],
			randomIndex(10000),
		)
		if _, taken := a.used[nick]; taken {
			continue
		}
		a.used[nick] = struct{}{}
		a.byPeer[peerID] = nick
		return nick, nil
	}
	return "", ErrAllocationExhausted
}

// Release frees the peer's nickname for reuse. No-op if the peer has none.
func (a *Allocator) Release(peerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if nick, ok := a.byPeer[peerID]; ok {
		delete(a.used, nick)
		delete(a.byPeer, peerID)
	}
}

// Nickname returns the peer's current nickname, if any.
func (a *Allocator) Nickname(peerID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nick, ok := a.byPeer[peerID]
	return nick, ok
}

// randomIndex returns a cryptographically secure random index in [0, max).
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
