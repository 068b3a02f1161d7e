package tcp

import (
	"github.com/google/uuid"
	"github.com/jseow5177/tcpio/netaddr"
	"github.com/jseow5177/tcpio/pool"
	"github.com/jseow5177/tcpio/reactor"
)

// Connection is one accepted or connected TCP socket. It is allocated
// from the owning Endpoint's connection pool and is only ever touched
// from that Endpoint's reactor goroutine.
type Connection struct {
	id uuid.UUID

	endpoint *Endpoint
	slot     *pool.Slot[Connection]

	fd       int
	peer     netaddr.Addr4
	readTok  reactor.Token
	registered bool

	head chunk // embedded: the first receive chunk needs no pool round trip

	relay      *Connection   // this connection's relay peer, or nil
	relayedBy  []*Connection // connections whose relay points at this one

	recvCB    ReceiveFunc
	closeCB   CloseFunc
	parseCB   ParseFunc
	recvAdmCB ConnAdmissionFunc

	userData any
	closed   bool
}

// ID returns this connection's trace identifier, suitable for log
// correlation. It plays no role in queue or pool bookkeeping, which key
// entirely off the Connection's own pointer identity.
func (c *Connection) ID() uuid.UUID { return c.id }

// Fd returns the underlying file descriptor, for callers that need to
// inspect socket-level state the endpoint doesn't expose directly.
func (c *Connection) Fd() int { return c.fd }

// Peer returns the remote address captured at accept/connect time.
func (c *Connection) Peer() netaddr.Addr4 { return c.peer }

// Endpoint returns the owning endpoint.
func (c *Connection) Endpoint() *Endpoint { return c.endpoint }

// SetUserData attaches an arbitrary application value to the
// connection; UserData retrieves it. Unused by the endpoint itself.
func (c *Connection) SetUserData(v any) { c.userData = v }

// UserData returns the value last passed to SetUserData, or nil.
func (c *Connection) UserData() any { return c.userData }

// SetReceiveCallback overrides the endpoint-level ReceiveFunc for this
// connection only.
func (c *Connection) SetReceiveCallback(fn ReceiveFunc) { c.recvCB = fn }

// SetCloseCallback overrides the endpoint-level CloseFunc for this
// connection only.
func (c *Connection) SetCloseCallback(fn CloseFunc) { c.closeCB = fn }

// SetParseCallback overrides the endpoint-level ParseFunc for this
// connection only.
func (c *Connection) SetParseCallback(fn ParseFunc) { c.parseCB = fn }

// SetReceiveAdmission overrides the endpoint-level per-recv admission
// check for this connection only.
func (c *Connection) SetReceiveAdmission(fn ConnAdmissionFunc) { c.recvAdmCB = fn }

// SetRelayPeer makes this connection forward every byte it receives
// directly to peer's socket, bypassing parse/receive callbacks
// entirely, and registers the teardown hook that clears both sides'
// relay pointer if either end goes away — the fix for the dangling
// relay pointer the source left as an open question.
func (c *Connection) SetRelayPeer(peer *Connection) {
	if c.relay != nil {
		c.relay.removeRelayedBy(c)
	}
	c.relay = peer
	if peer != nil {
		peer.relayedBy = append(peer.relayedBy, c)
	}
}

// ClearRelayPeer removes the relay association, if any.
func (c *Connection) ClearRelayPeer() {
	c.SetRelayPeer(nil)
}

func (c *Connection) removeRelayedBy(who *Connection) {
	for i, r := range c.relayedBy {
		if r == who {
			c.relayedBy = append(c.relayedBy[:i], c.relayedBy[i+1:]...)
			return
		}
	}
}

// clearRelayLinks runs at teardown: it drops this connection out of
// its own relay peer's relayedBy list, and clears the relay pointer of
// every connection that was relaying into this one.
func (c *Connection) clearRelayLinks() {
	if c.relay != nil {
		c.relay.removeRelayedBy(c)
		c.relay = nil
	}
	for _, r := range c.relayedBy {
		r.relay = nil
	}
	c.relayedBy = nil
}

// Close tears the connection down from application code (as opposed to
// a recv() error or end of stream the endpoint observed itself).
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.endpoint.teardown(c, CloseReasonExplicit)
}

func (c *Connection) effectiveRecv() ReceiveFunc {
	if c.recvCB != nil {
		return c.recvCB
	}
	return c.endpoint.recvCB
}

func (c *Connection) effectiveClose() CloseFunc {
	if c.closeCB != nil {
		return c.closeCB
	}
	return c.endpoint.closeCB
}

func (c *Connection) effectiveParse() ParseFunc {
	if c.parseCB != nil {
		return c.parseCB
	}
	return c.endpoint.parseCB
}

func (c *Connection) effectiveRecvAdmission() ConnAdmissionFunc {
	if c.recvAdmCB != nil {
		return c.recvAdmCB
	}
	return c.endpoint.connAdmCB
}
