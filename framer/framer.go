// Package framer implements the stream framers the TCP endpoint's
// parse dispatch delegates to: a 16-bit length-prefixed frame, a 32-bit
// length-prefixed frame, and a newline-terminated text line frame. All
// three are pure functions — they allocate only their own output and
// know nothing about connections, pools, or the reactor.
package framer

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrTooLarge is returned by a Parse function when a payload exceeds the
// caller-supplied maximum: by Parse16/Parse32 once the complete frame is
// available, by ParseText as soon as the scanned line grows past the
// maximum, before any terminator is seen.
var ErrTooLarge = errors.New("framer: payload exceeds maximum")

// ErrPayloadTooLarge is returned by a Pack function when the payload
// cannot fit in the frame's length field.
var ErrPayloadTooLarge = errors.New("framer: payload exceeds frame capacity")

// Pack16 prepends a big-endian uint16 length to payload.
func Pack16(payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, ErrPayloadTooLarge
	}
	out := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(out[:2], uint16(len(payload)))
	copy(out[2:], payload)
	return out, nil
}

// Parse16 attempts to decode one Pack16 frame from the front of data.
// consumed == 0 means data does not yet hold a complete frame (the
// caller should wait for more bytes); err is non-nil only for
// ErrTooLarge, in which case the frame will never fit and must be
// treated as a protocol error.
func Parse16(data []byte, maxPayload int) (payload []byte, consumed int, err error) {
	if len(data) < 2 {
		return nil, 0, nil
	}
	n := binary.BigEndian.Uint16(data[:2])
	if int(n)+2 > len(data) {
		return nil, 0, nil
	}
	if maxPayload > 0 && int(n) > maxPayload {
		return nil, 0, ErrTooLarge
	}
	payload = make([]byte, n)
	copy(payload, data[2:2+int(n)])
	return payload, 2 + int(n), nil
}

// Pack32 prepends a big-endian uint32 length to payload.
func Pack32(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out, nil
}

// Parse32 is Parse16's 32-bit-length-prefix counterpart.
func Parse32(data []byte, maxPayload int) (payload []byte, consumed int, err error) {
	if len(data) < 4 {
		return nil, 0, nil
	}
	n := binary.BigEndian.Uint32(data[:4])
	if uint64(n)+4 > uint64(len(data)) {
		return nil, 0, nil
	}
	if maxPayload > 0 && uint64(n) > uint64(maxPayload) {
		return nil, 0, ErrTooLarge
	}
	payload = make([]byte, n)
	copy(payload, data[4:4+int(n)])
	return payload, 4 + int(n), nil
}

// PackText appends a trailing '\n' if payload doesn't already end with
// one.
func PackText(payload []byte) []byte {
	if len(payload) > 0 && payload[len(payload)-1] == '\n' {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	}
	out := make([]byte, len(payload)+1)
	copy(out, payload)
	out[len(payload)] = '\n'
	return out
}

// ParseText scans data for a terminating '\n' or NUL byte, rewriting
// any '\r' it passes over to NUL as it goes (matching the source's
// telnet-line convention), and returns the line including a trailing
// NUL byte the way the original null-terminated its output buffer.
// consumed == 0 means no terminator was found yet.
func ParseText(data []byte, maxPayload int) (payload []byte, consumed int, err error) {
	out := make([]byte, 0, len(data))
	for i, b := range data {
		if b == '\n' || b == 0 {
			line := make([]byte, len(out)+1)
			copy(line, out)
			line[len(out)] = 0
			return line, i + 1, nil
		}
		if b == '\r' {
			b = 0
		}
		out = append(out, b)
		if maxPayload > 0 && i > maxPayload {
			return nil, 0, ErrTooLarge
		}
	}
	return nil, 0, nil
}
