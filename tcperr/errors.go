// Package tcperr collects the sentinel errors shared across tcpio's
// packages so callers can branch on them with errors.Is regardless of
// which package raised them.
package tcperr

import "errors"

var (
	// ErrOutOfMemory is the public-boundary counterpart of
	// pool.ErrOutOfMemory. No function in this module returns it.
	ErrOutOfMemory = errors.New("tcpio: out of memory")

	// ErrPoolExhausted is returned when the hard-capped connection pool
	// has no free slots left (by Endpoint.Connect; on accept it is
	// logged). Receive-chunk pool exhaustion is logged, not returned.
	ErrPoolExhausted = errors.New("tcpio: pool exhausted")

	// ErrConnectFailed reports a failed outbound connect(2), or a
	// client connection rejected by the AcceptFunc.
	ErrConnectFailed = errors.New("tcpio: connect failed")

	// ErrParse names a protocol error reported by a parse callback.
	// The endpoint does not return it: it logs the error value the
	// parse callback itself returned.
	ErrParse = errors.New("tcpio: parse error")

	// ErrProtocolCapacity names a complete frame header whose payload
	// will never fit the configured maximum. No function in this
	// module returns it; the framer package reports that case as
	// framer.ErrTooLarge.
	ErrProtocolCapacity = errors.New("tcpio: protocol payload exceeds capacity")

	// ErrUnsupportedPlatform is returned by constructors whose
	// functionality (AF_PACKET sockets) is Linux-only.
	ErrUnsupportedPlatform = errors.New("tcpio: unsupported platform")

	// ErrGroupClosed names an operation on a closed reactor group. No
	// function in this module returns it: reactor.Group operations
	// after Close return reactor.ErrClosed.
	ErrGroupClosed = errors.New("tcpio: group closed")

	// ErrInvalidAddress is returned by Endpoint.Connect on an endpoint
	// that is not in the client role. A bind or connect address that
	// is not a numeric IPv4 "host:port" literal is reported with
	// netaddr.ErrInvalidAddress instead.
	ErrInvalidAddress = errors.New("tcpio: invalid address")
)
