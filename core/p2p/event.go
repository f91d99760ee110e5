package p2p

import (
	peer "github.com/libp2p/go-libp2p/core/peer"

	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

// RequestID identifies one outbound request/response exchange. IDs are unique
// for the lifetime of a Service and never reused.
type RequestID uint64

// Event is one item on the service's event stream. It is always one of the
// concrete types below; consumers dispatch with a type switch.
type Event any

// PeerFound reports a peer that is newly discovered or newly connected.
// Duplicates are normal; consumers deduplicate.
type PeerFound struct {
	Peer peer.ID
}

// PeerLost reports that the last connection to a peer has gone away.
type PeerLost struct {
	Peer peer.ID
}

// InboundRequest reports a request read from a remote peer. The consumer owns
// the exchange from here and must answer exactly once through Reply.
type InboundRequest struct {
	From    peer.ID
	Request protocol.InferenceRequest
	Reply   ResponseSender
}

// ResponseReceived reports the successful completion of the outbound exchange
// identified by ID.
type ResponseReceived struct {
	ID       RequestID
	From     peer.ID
	Response protocol.InferenceResponse
}

// OutboundFailure reports that the outbound exchange identified by ID will
// never complete: dialing failed, the frame exchange failed, or the deadline
// passed. Every SendRequest resolves with exactly one ResponseReceived or
// OutboundFailure.
type OutboundFailure struct {
	ID   RequestID
	Peer peer.ID
	Err  error
}

// ResponseSender answers one inbound request. Send transmits the response and
// releases the underlying stream; only the first call succeeds.
type ResponseSender interface {
	Send(res protocol.InferenceResponse) error
}
