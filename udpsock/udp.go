// Package udpsock implements a single non-blocking UDP4 socket wired
// into a shared reactor.Group: one recv callback, no write queue and no
// connection table, since UDP has no connection state to multiplex.
package udpsock

import (
	"github.com/jseow5177/tcpio/netaddr"
	"github.com/jseow5177/tcpio/reactor"
	"golang.org/x/sys/unix"
)

// RecvFunc delivers one received datagram and its source address.
type RecvFunc func(u *UDP, from netaddr.Addr4, b []byte)

const recvBufSize = 64 * 1024

// UDP is one bound UDP4 socket registered on a reactor.Group.
type UDP struct {
	fd      int
	group   *reactor.Group
	tok     reactor.Token
	recvCB  RecvFunc
	closed  bool
}

// NewUDP binds a UDP4 socket to bindAddr and registers it for read
// events on group.
func NewUDP(bindAddr string, group *reactor.Group) (*UDP, error) {
	addr, err := netaddr.Parse(bindAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.IP}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	u := &UDP{fd: fd, group: group}
	tok, err := group.RegisterRead(fd, u.onReadable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	u.tok = tok
	return u, nil
}

// SetRecvCallback installs the datagram handler.
func (u *UDP) SetRecvCallback(fn RecvFunc) { u.recvCB = fn }

// SendTo sends b to peer with a single sendto(2). There is no
// queueing: a caller that needs backpressure-aware delivery should use
// the TCP endpoint instead, matching the scope note that UDP here is a
// best-effort, unbuffered datagram socket.
func (u *UDP) SendTo(peer netaddr.Addr4, b []byte) (int, error) {
	sa := &unix.SockaddrInet4{Port: int(peer.Port), Addr: peer.IP}
	if err := unix.Sendto(u.fd, b, 0, sa); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close deregisters and closes the socket.
func (u *UDP) Close() {
	if u.closed {
		return
	}
	u.closed = true
	u.group.Deregister(u.tok)
	unix.Close(u.fd)
}

func (u *UDP) onReadable() {
	var buf [recvBufSize]byte
	n, from, err := unix.Recvfrom(u.fd, buf[:], 0)
	if err != nil {
		return
	}
	if u.recvCB == nil {
		return
	}
	var addr netaddr.Addr4
	if in4, ok := from.(*unix.SockaddrInet4); ok {
		addr.IP = in4.Addr
		addr.Port = uint16(in4.Port)
	}
	u.recvCB(u, addr, buf[:n])
}
