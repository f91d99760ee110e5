package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	peer "github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

const ProtocolID = "/axon/inference/1.0.0"

// ErrReplyConsumed reports a second Send on the same inbound request.
var ErrReplyConsumed = errors.New("reply already sent for this request")

// stream is the slice of network.Stream the exchange relies on. Tests
// substitute in-memory pipes.
type stream interface {
	io.ReadWriteCloser
	CloseWrite() error
	Reset() error
	SetDeadline(time.Time) error
}

// SendRequest starts one exchange with a peer and returns immediately. The
// outcome arrives later on the event stream as a ResponseReceived or
// OutboundFailure carrying the returned id.
func (s *Service) SendRequest(to peer.ID, req protocol.InferenceRequest) RequestID {
	id := RequestID(s.nextID.Add(1))
	go s.doRequest(id, to, req)
	return id
}

func (s *Service) doRequest(id RequestID, to peer.ID, req protocol.InferenceRequest) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	st, err := s.host.NewStream(ctx, to, ProtocolID)
	if err != nil {
		s.emit(OutboundFailure{ID: id, Peer: to, Err: fmt.Errorf("failed to open stream: %w", err)})
		return
	}

	res, err := s.exchange(st, req)
	if err != nil {
		s.emit(OutboundFailure{ID: id, Peer: to, Err: err})
		return
	}
	s.emit(ResponseReceived{ID: id, From: to, Response: res})
}

// exchange runs the requester half of one round trip: write the request,
// half-close so the peer sees EOF, then read the single response frame.
func (s *Service) exchange(st stream, req protocol.InferenceRequest) (protocol.InferenceResponse, error) {
	_ = st.SetDeadline(time.Now().Add(s.timeout))

	if err := protocol.WriteRequest(st, req); err != nil {
		_ = st.Reset()
		return protocol.InferenceResponse{}, fmt.Errorf("failed to write request: %w", err)
	}
	if err := st.CloseWrite(); err != nil {
		_ = st.Reset()
		return protocol.InferenceResponse{}, fmt.Errorf("failed to close write side: %w", err)
	}

	res, err := protocol.ReadResponse(st)
	if err != nil {
		_ = st.Reset()
		return protocol.InferenceResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	_ = st.Close()
	return res, nil
}

func (s *Service) handleStream(st network.Stream) {
	s.serveStream(st.Conn().RemotePeer(), st)
}

// serveStream runs the responder half up to the point of understanding the
// request, then hands the stream to the consumer through an InboundRequest.
// The deadline set here also bounds how long the consumer may take to reply.
func (s *Service) serveStream(from peer.ID, st stream) {
	_ = st.SetDeadline(time.Now().Add(s.timeout))

	req, err := protocol.ReadRequest(st)
	if err != nil {
		s.log.Warn("bad inbound request frame", zap.String("peer", from.String()), zap.Error(err))
		_ = st.Reset()
		return
	}
	s.emit(InboundRequest{From: from, Request: req, Reply: &replier{st: st}})
}

// replier owns the response half of an inbound stream.
type replier struct {
	once sync.Once
	st   stream
}

func (r *replier) Send(res protocol.InferenceResponse) error {
	err := ErrReplyConsumed
	r.once.Do(func() {
		err = r.send(res)
	})
	return err
}

func (r *replier) send(res protocol.InferenceResponse) error {
	if err := protocol.WriteResponse(r.st, res); err != nil {
		_ = r.st.Reset()
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := r.st.CloseWrite(); err != nil {
		_ = r.st.Reset()
		return fmt.Errorf("failed to close write side: %w", err)
	}
	return r.st.Close()
}
