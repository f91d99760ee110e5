package node

import "errors"

// commandQueueSize bounds how many asks may wait for the loop at once.
// Beyond this, callers block in Ask until the loop catches up or their
// context expires.
const commandQueueSize = 32

// ErrNoPeer reports an ask arriving while the registry is empty. The ask
// fails immediately rather than waiting for a peer to appear.
var ErrNoPeer = errors.New("no peer available")

// AskResult resolves one ask: the answer text, or the error that ended it.
type AskResult struct {
	Answer string
	Err    error
}

// AskCommand carries one prompt from an external caller into the node loop.
// Reply must have capacity 1 so the loop can resolve it without blocking.
type AskCommand struct {
	Prompt string
	Reply  chan AskResult
}
