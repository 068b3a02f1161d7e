//go:build !linux

package rawsock

import (
	"github.com/jseow5177/tcpio/reactor"
	"github.com/jseow5177/tcpio/tcperr"
)

// RecvFunc delivers one raw frame read from the interface. On this
// platform it is never called.
type RecvFunc func(r *RawSocket, b []byte)

// RawSocket keeps the Linux build's public surface stable across
// platforms; every operation is a no-op or an error here.
type RawSocket struct{}

// NewRawSocket always fails on non-Linux platforms: AF_PACKET sockets
// do not exist outside Linux.
func NewRawSocket(ifaceName string, protocol uint16, group *reactor.Group) (*RawSocket, error) {
	return nil, tcperr.ErrUnsupportedPlatform
}

func (r *RawSocket) SetRecvCallback(fn RecvFunc) {}
func (r *RawSocket) Close()                      {}
