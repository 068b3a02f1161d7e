// Package mcast implements a UDP socket joined to an IPv4 multicast
// group, wired into a shared reactor.Group the same way udpsock is.
package mcast

import (
	"github.com/jseow5177/tcpio/netaddr"
	"github.com/jseow5177/tcpio/reactor"
	"golang.org/x/sys/unix"
)

// RecvFunc delivers one datagram received on the joined group.
type RecvFunc func(m *Multicast, b []byte)

const recvBufSize = 64 * 1024

// Multicast is a UDP4 socket that has joined one multicast group.
type Multicast struct {
	fd     int
	group  *reactor.Group
	tok    reactor.Token
	recvCB RecvFunc
	joined bool
	closed bool
}

// NewMulticast binds a UDP4 socket to bindAddr, joins groupAddr (a
// dotted-quad multicast address with no port) via IP_ADD_MEMBERSHIP,
// and registers the socket for read events.
func NewMulticast(groupAddr, bindAddr string, reactorGroup *reactor.Group) (*Multicast, error) {
	bind, err := netaddr.Parse(bindAddr)
	if err != nil {
		return nil, err
	}
	mcastIP, err := netaddr.Parse(groupAddr + ":0")
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
	sa := &unix.SockaddrInet4{Port: int(bind.Port), Addr: bind.IP}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}

	mreq := &unix.IPMreq{Multiaddr: mcastIP.IP, Interface: [4]byte{0, 0, 0, 0}}
	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	m := &Multicast{fd: fd, group: reactorGroup, joined: true}
	tok, err := reactorGroup.RegisterRead(fd, m.onReadable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	m.tok = tok
	return m, nil
}

// SetRecvCallback installs the datagram handler.
func (m *Multicast) SetRecvCallback(fn RecvFunc) { m.recvCB = fn }

// Leave stops delivering datagrams to the recv callback without closing
// the socket. It does not issue IP_DROP_MEMBERSHIP: the socket stays
// joined to the group, and datagrams that still arrive are read and
// discarded.
func (m *Multicast) Leave() {
	m.joined = false
}

// Close deregisters and closes the socket.
func (m *Multicast) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.group.Deregister(m.tok)
	unix.Close(m.fd)
}

func (m *Multicast) onReadable() {
	var buf [recvBufSize]byte
	n, _, err := unix.Recvfrom(m.fd, buf[:], 0)
	if err != nil {
		return
	}
	if !m.joined || m.recvCB == nil {
		return
	}
	m.recvCB(m, buf[:n])
}
