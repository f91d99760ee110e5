package p2p

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	peer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

// fakeStream is one end of a duplex in-memory stream with half-close
// semantics matching a muxed libp2p stream.
type fakeStream struct {
	in  *io.PipeReader
	out *io.PipeWriter
}

func streamPair() (*fakeStream, *fakeStream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &fakeStream{in: ar, out: aw}, &fakeStream{in: br, out: bw}
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.out.Write(p) }
func (f *fakeStream) CloseWrite() error           { return f.out.Close() }

func (f *fakeStream) Close() error {
	f.in.Close()
	return f.out.Close()
}

func (f *fakeStream) Reset() error {
	err := errors.New("stream reset")
	f.in.CloseWithError(err)
	f.out.CloseWithError(err)
	return nil
}

func (f *fakeStream) SetDeadline(time.Time) error { return nil }

func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Service{
		ctx:     ctx,
		cancel:  cancel,
		log:     zap.NewNop(),
		events:  make(chan Event, eventBufferSize),
		timeout: 5 * time.Second,
	}
}

func waitEvent(t *testing.T, svc *Service) Event {
	t.Helper()
	select {
	case ev := <-svc.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestExchangeRoundTrip(t *testing.T) {
	svc := newTestService(t)
	local, remote := streamPair()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := protocol.ReadRequest(remote)
		assert.NoError(t, err)
		assert.Equal(t, "What is 2+2?", req.Prompt)

		// The requester half-closed after its frame, so the read side
		// must be cleanly exhausted.
		var one [1]byte
		_, err = remote.Read(one[:])
		assert.ErrorIs(t, err, io.EOF)

		assert.NoError(t, protocol.WriteResponse(remote, protocol.NewSuccess("4")))
		assert.NoError(t, remote.CloseWrite())
	}()

	res, err := svc.exchange(local, protocol.InferenceRequest{Prompt: "What is 2+2?"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "4", res.Text)
	<-done
}

func TestExchangePeerResets(t *testing.T) {
	svc := newTestService(t)
	local, remote := streamPair()

	go func() {
		_, err := protocol.ReadRequest(remote)
		assert.NoError(t, err)
		_ = remote.Reset()
	}()

	_, err := svc.exchange(local, protocol.InferenceRequest{Prompt: "hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read response")
}

func TestServeStreamEmitsInboundRequest(t *testing.T) {
	svc := newTestService(t)
	local, remote := streamPair()
	from := peer.ID("peer-a")

	go svc.serveStream(from, local)

	require.NoError(t, protocol.WriteRequest(remote, protocol.InferenceRequest{Prompt: "hello"}))
	require.NoError(t, remote.CloseWrite())

	ev := waitEvent(t, svc)
	inb, ok := ev.(InboundRequest)
	require.True(t, ok, "expected InboundRequest, got %T", ev)
	require.Equal(t, from, inb.From)
	require.Equal(t, "hello", inb.Request.Prompt)

	read := make(chan protocol.InferenceResponse, 1)
	go func() {
		res, err := protocol.ReadResponse(remote)
		assert.NoError(t, err)
		read <- res
	}()

	require.NoError(t, inb.Reply.Send(protocol.NewSuccess("world")))

	select {
	case res := <-read:
		require.True(t, res.Success)
		require.Equal(t, "world", res.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("response never reached the peer")
	}

	require.ErrorIs(t, inb.Reply.Send(protocol.NewSuccess("again")), ErrReplyConsumed)
}

func TestServeStreamDropsMalformedFrame(t *testing.T) {
	svc := newTestService(t)
	local, remote := streamPair()

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.serveStream(peer.ID("peer-a"), local)
	}()

	// Valid prefix, payload that is not JSON.
	_, err := remote.Write([]byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'})
	require.NoError(t, err)

	<-done
	require.Empty(t, svc.events)
}

func TestServeStreamDropsTruncatedFrame(t *testing.T) {
	svc := newTestService(t)
	local, remote := streamPair()

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.serveStream(peer.ID("peer-a"), local)
	}()

	// Prefix promises 100 bytes, then the stream closes early.
	_, err := remote.Write([]byte{0, 0, 0, 100})
	require.NoError(t, err)
	require.NoError(t, remote.CloseWrite())

	<-done
	require.Empty(t, svc.events)
}
