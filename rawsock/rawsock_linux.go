//go:build linux

// Package rawsock implements an AF_PACKET raw socket bound to one
// network interface, wired into a shared reactor.Group. It is
// Linux-only: AF_PACKET has no equivalent on other platforms, so the
// non-Linux build of this package exports the same surface and fails
// every constructor with ErrUnsupportedPlatform instead.
package rawsock

import (
	"encoding/binary"
	"net"

	"github.com/jseow5177/tcpio/reactor"
	"golang.org/x/sys/unix"
)

// RecvFunc delivers one raw frame read from the interface.
type RecvFunc func(r *RawSocket, b []byte)

const recvBufSize = 64 * 1024

// RawSocket is an AF_PACKET/SOCK_RAW socket bound to one interface.
type RawSocket struct {
	fd     int
	group  *reactor.Group
	tok    reactor.Token
	recvCB RecvFunc
	closed bool
}

// NewRawSocket opens an AF_PACKET raw socket for protocol (an
// EtherType in host byte order, e.g. unix.ETH_P_ALL) and binds it to
// the named interface.
func NewRawSocket(ifaceName string, protocol uint16, group *reactor.Group) (*RawSocket, error) {
	be := htons(protocol)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(be))
	if err != nil {
		return nil, err
	}

	iface, err := interfaceIndex(ifaceName)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: be,
		Ifindex:  iface,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	r := &RawSocket{fd: fd, group: group}
	tok, err := group.RegisterRead(fd, r.onReadable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	r.tok = tok
	return r, nil
}

// SetRecvCallback installs the frame handler.
func (r *RawSocket) SetRecvCallback(fn RecvFunc) { r.recvCB = fn }

// Close deregisters and closes the socket.
func (r *RawSocket) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.group.Deregister(r.tok)
	unix.Close(r.fd)
}

func (r *RawSocket) onReadable() {
	var buf [recvBufSize]byte
	n, _, err := unix.Recvfrom(r.fd, buf[:], 0)
	if err != nil {
		return
	}
	if r.recvCB == nil {
		return
	}
	r.recvCB(r, buf[:n])
}

func htons(v uint16) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return binary.LittleEndian.Uint16(b)
}

func interfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}
