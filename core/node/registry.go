package node

import (
	"sort"
	"time"

	peer "github.com/libp2p/go-libp2p/core/peer"
)

type peerRecord struct {
	firstSeen time.Time
	seq       uint64
}

// Registry tracks the peers currently believed reachable. It is owned by the
// node loop and is not safe for concurrent use.
type Registry struct {
	peers   map[peer.ID]peerRecord
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[peer.ID]peerRecord)}
}

// Add records p and reports whether it was previously unknown. Re-adding a
// known peer changes nothing, so discovery chatter cannot reorder selection.
func (r *Registry) Add(p peer.ID) bool {
	if _, ok := r.peers[p]; ok {
		return false
	}
	r.nextSeq++
	r.peers[p] = peerRecord{firstSeen: time.Now(), seq: r.nextSeq}
	return true
}

// Remove forgets p. Removing an unknown peer is a no-op.
func (r *Registry) Remove(p peer.ID) {
	delete(r.peers, p)
}

func (r *Registry) Contains(p peer.ID) bool {
	_, ok := r.peers[p]
	return ok
}

func (r *Registry) Len() int {
	return len(r.peers)
}

// Known returns all tracked peers in discovery order.
func (r *Registry) Known() []peer.ID {
	out := make([]peer.ID, 0, len(r.peers))
	for p := range r.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.peers[out[i]].seq < r.peers[out[j]].seq
	})
	return out
}

// Pick selects the peer discovered earliest among those still present. A peer
// that expires and comes back re-enters at the end of the order.
func (r *Registry) Pick() (peer.ID, bool) {
	var best peer.ID
	found := false
	for p, rec := range r.peers {
		if !found || rec.seq < r.peers[best].seq {
			best = p
			found = true
		}
	}
	return best, found
}
