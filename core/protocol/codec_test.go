package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	model := "llama3:8b"
	cases := []InferenceRequest{
		{Prompt: "What is 2+2?"},
		{Prompt: "What is 2+2?", Model: &model},
		{Prompt: ""},
	}

	for _, in := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, in))

		out, err := ReadRequest(&buf)
		require.NoError(t, err)
		require.Equal(t, in, out)
		require.Zero(t, buf.Len(), "reader must consume the full frame")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, in := range []InferenceResponse{
		NewSuccess("4"),
		NewFailure("model not found"),
	} {
		var buf bytes.Buffer
		require.NoError(t, WriteResponse(&buf, in))

		out, err := ReadResponse(&buf)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, InferenceRequest{Prompt: "hi"}))

	raw := buf.Bytes()
	require.Greater(t, len(raw), 4)
	declared := binary.BigEndian.Uint32(raw[:4])
	require.Equal(t, int(declared), len(raw)-4)
	require.JSONEq(t, `{"prompt":"hi"}`, string(raw[4:]))
}

func TestReadTruncatedPrefix(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrTruncated)

	_, err = ReadRequest(bytes.NewReader([]byte{0x00, 0x00}))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, NewSuccess("the quick brown fox")))

	// Drop the tail of the payload to simulate a stream closed mid-frame.
	raw := buf.Bytes()
	_, err := ReadResponse(bytes.NewReader(raw[:len(raw)-5]))
	require.ErrorIs(t, err, ErrTruncated)
	require.NotErrorIs(t, err, ErrMalformed)
}

func TestReadMalformedPayload(t *testing.T) {
	payload := []byte("this is not json")
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	_, err := ReadRequest(bytes.NewReader(frame))
	require.ErrorIs(t, err, ErrMalformed)
	require.NotErrorIs(t, err, ErrTruncated)
}

func TestReadEmptyPayloadIsMalformed(t *testing.T) {
	// A zero-length frame is complete but carries no JSON document.
	_, err := ReadRequest(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestReadRejectsOversizedPrefix(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)

	// No payload follows: the declared size alone must be rejected.
	_, err := ReadResponse(bytes.NewReader(prefix[:]))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRequest(&buf, InferenceRequest{Prompt: strings.Repeat("a", MaxFrameSize)})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.Zero(t, buf.Len(), "nothing may reach the wire for an oversized frame")
}

func TestResponseResult(t *testing.T) {
	text, err := NewSuccess("4").Result()
	require.NoError(t, err)
	require.Equal(t, "4", text)

	_, err = NewFailure("connection refused").Result()
	require.EqualError(t, err, "connection refused")

	// A failure with no message still resolves to an error.
	_, err = (InferenceResponse{Success: false}).Result()
	require.EqualError(t, err, "unknown error")
}

func TestRequestModelOr(t *testing.T) {
	require.Equal(t, "qwen:0.5b", InferenceRequest{Prompt: "x"}.ModelOr("qwen:0.5b"))

	empty := ""
	require.Equal(t, "qwen:0.5b", InferenceRequest{Prompt: "x", Model: &empty}.ModelOr("qwen:0.5b"))

	custom := "mistral"
	require.Equal(t, "mistral", InferenceRequest{Prompt: "x", Model: &custom}.ModelOr("qwen:0.5b"))
}
