// Package protocol defines the messages exchanged between cluster peers and
// the framing that carries them. Every frame is a 4-byte big-endian length
// prefix followed by exactly that many bytes of JSON. A sender transmits one
// frame per stream direction and half-closes its write side, so the reader
// sees a clean EOF after the payload.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds the declared payload length of a single frame. The
// prefix could otherwise claim up to 4 GiB and force the reader to allocate
// it before a single payload byte arrives; oversized frames are rejected on
// the prefix alone.
const MaxFrameSize = 16 << 20

var (
	// ErrTruncated reports a stream that ended before a complete frame.
	ErrTruncated = errors.New("frame truncated")
	// ErrMalformed reports a complete frame whose payload is not valid JSON
	// for the expected message.
	ErrMalformed = errors.New("malformed frame payload")
	// ErrFrameTooLarge reports a frame whose declared or actual size exceeds
	// MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

func WriteRequest(w io.Writer, req InferenceRequest) error {
	return writeFrame(w, req)
}

func WriteResponse(w io.Writer, res InferenceResponse) error {
	return writeFrame(w, res)
}

func ReadRequest(r io.Reader) (InferenceRequest, error) {
	var req InferenceRequest
	err := readFrame(r, &req)
	return req, err
}

func ReadResponse(r io.Reader) (InferenceResponse, error) {
	var res InferenceResponse
	err := readFrame(r, &res)
	return res, err
}

func writeFrame(w io.Writer, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: payload is %d bytes", ErrFrameTooLarge, len(payload))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, msg any) error {
	var prefix [4]byte
	if n, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("%w: got %d of 4 prefix bytes: %v", ErrTruncated, n, err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return fmt.Errorf("%w: prefix declares %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if n, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("%w: got %d of %d payload bytes: %v", ErrTruncated, n, length, err)
	}

	if err := json.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
