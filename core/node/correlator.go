package node

import (
	"sync"

	"github.com/0xharryriddle/axon-cluster/core/p2p"
)

// Correlator matches transport outcomes back to the callers waiting on them.
// Each in-flight request holds one reply slot; the first outcome for an id
// claims the slot and every later one is dropped, so a caller is resolved
// exactly once.
type Correlator struct {
	mu      sync.Mutex
	pending map[p2p.RequestID]chan AskResult
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[p2p.RequestID]chan AskResult)}
}

// Register parks slot until an outcome for id arrives.
func (c *Correlator) Register(id p2p.RequestID, slot chan AskResult) {
	c.mu.Lock()
	c.pending[id] = slot
	c.mu.Unlock()
}

// Resolve delivers res to the slot registered for id, if one is still
// waiting. It reports whether the outcome was delivered; false means the id
// is unknown or already resolved.
func (c *Correlator) Resolve(id p2p.RequestID, res AskResult) bool {
	c.mu.Lock()
	slot, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	slot <- res
	return true
}

// FailAll resolves every pending request with err. Used at shutdown so no
// caller stays parked forever.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[p2p.RequestID]chan AskResult)
	c.mu.Unlock()

	for _, slot := range pending {
		slot <- AskResult{Err: err}
	}
}

// Pending reports how many requests are awaiting an outcome.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
