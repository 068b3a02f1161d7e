// Package tcp implements the reactor-driven TCP endpoint: a listening
// or connecting socket paired with a connection pool, a bounded write
// queue, and pluggable accept/receive/close/parse callbacks, all driven
// from a single reactor.Group goroutine with no internal locking.
package tcp

import (
	"log"
	"io"

	"github.com/google/uuid"
	"github.com/jseow5177/tcpio/netaddr"
	"github.com/jseow5177/tcpio/pool"
	"github.com/jseow5177/tcpio/queue"
	"github.com/jseow5177/tcpio/reactor"
	"github.com/jseow5177/tcpio/tcperr"
	"golang.org/x/sys/unix"
)

// Role distinguishes a listening Endpoint from an outbound-connecting
// one; both share the same connection table, write queue, and flush
// timer.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Endpoint is a listening or connecting TCP socket bound to one
// reactor.Group, plus everything needed to service the connections it
// produces.
type Endpoint struct {
	role Role
	cfg  Config

	group *reactor.Group

	listenFD  int
	listenTok reactor.Token
	bindAddr  netaddr.Addr4

	clientAddr netaddr.Addr4 // RoleClient only

	connPool  *pool.Pool[Connection]
	chunkPool *pool.Pool[chunk]
	wqueue    *queue.Queue[*Connection, wentry]

	flushTok reactor.Token

	acceptCB    AcceptFunc
	acceptAdmCB AdmissionFunc
	recvCB      ReceiveFunc
	closeCB     CloseFunc
	parseCB     ParseFunc
	connAdmCB   ConnAdmissionFunc

	pendingAccept bool // an admission check deferred accept()
	logger        *log.Logger

	closed bool
}

func newEndpoint(role Role, group *reactor.Group, cfg Config) *Endpoint {
	connPool, err := pool.New[Connection](cfg.InitialConns, cfg.MaxConns)
	if err != nil {
		panic(err) // pool.New clamps a non-positive initial size to 1, so this does not fire
	}
	chunkPool, err := pool.New[chunk](cfg.InitialChunks, cfg.MaxChunks)
	if err != nil {
		panic(err)
	}
	e := &Endpoint{
		role:      role,
		cfg:       cfg,
		group:     group,
		connPool:  connPool,
		chunkPool: chunkPool,
		wqueue:    queue.New[*Connection, wentry](cfg.InitialWriteEntries),
		logger:    log.New(io.Discard, "", 0),
	}
	e.flushTok = group.RegisterTimer(cfg.IdleFlush, e.onFlushTimer)
	return e
}

// NewServer opens a listening socket at bindAddr (a numeric
// "a.b.c.d:port" address) and registers it with group. Accepted
// connections share group and this endpoint's pools and callbacks.
func NewServer(bindAddr string, group *reactor.Group, cfg Config) (*Endpoint, error) {
	addr, err := netaddr.Parse(bindAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := tuneListenSocket(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.IP}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	e := newEndpoint(RoleServer, group, cfg)
	e.listenFD = fd
	e.bindAddr = addr

	tok, err := group.RegisterRead(fd, e.onAcceptable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	e.listenTok = tok
	return e, nil
}

// NewClient creates an Endpoint in the client role. Call Connect to
// open the outbound connection; until then the endpoint owns no
// sockets beyond its flush timer.
func NewClient(remoteAddr string, group *reactor.Group, cfg Config) (*Endpoint, error) {
	addr, err := netaddr.Parse(remoteAddr)
	if err != nil {
		return nil, err
	}
	e := newEndpoint(RoleClient, group, cfg)
	e.clientAddr = addr
	return e, nil
}

// SetLogger installs a logger for protocol-error and diagnostic
// messages; the default discards everything.
func (e *Endpoint) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	e.logger = l
}

func (e *Endpoint) SetAcceptCallback(fn AcceptFunc)           { e.acceptCB = fn }
func (e *Endpoint) SetAcceptAdmission(fn AdmissionFunc)       { e.acceptAdmCB = fn }
func (e *Endpoint) SetReceiveCallback(fn ReceiveFunc)         { e.recvCB = fn }
func (e *Endpoint) SetCloseCallback(fn CloseFunc)             { e.closeCB = fn }
func (e *Endpoint) SetParseCallback(fn ParseFunc)             { e.parseCB = fn }
func (e *Endpoint) SetReceiveAdmission(fn ConnAdmissionFunc)  { e.connAdmCB = fn }

// OpenConnections returns the number of live connections on this
// endpoint.
func (e *Endpoint) OpenConnections() int { return e.connPool.InUseCount() }

// Resume re-evaluates a deferred accept admission check on the next
// flush tick instead of spinning on every reactor wake-up. Call it when
// whatever condition caused AdmissionFunc to return negative has
// cleared (e.g. a connection limit freed up).
func (e *Endpoint) Resume() {
	e.pendingAccept = true
}

func (e *Endpoint) onAcceptable() {
	if e.closed {
		return
	}
	if e.acceptAdmCB != nil && e.acceptAdmCB(e) < 0 {
		// Take the listening socket out of the poll set so a pending
		// connection does not wake the reactor again; the flush tick
		// retries the check.
		e.group.Deregister(e.listenTok)
		e.pendingAccept = true
		return
	}
	tok, err := e.group.RegisterRead(e.listenFD, e.onAcceptable)
	if err != nil {
		return
	}
	e.listenTok = tok
	e.accept()
}

func (e *Endpoint) accept() {
	for {
		fd, sa, err := unix.Accept4(e.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if !isRetryable(err) && e.logger != nil {
				e.logger.Printf("tcpio: accept: %v", err)
			}
			return
		}

		c, err := e.newConnFromAccept(fd, sa)
		if err != nil {
			unix.Close(fd)
			if e.logger != nil {
				e.logger.Printf("tcpio: accept setup: %v", err)
			}
			continue
		}

		if e.acceptCB != nil && e.acceptCB(c) < 0 {
			e.teardownSilent(c)
			continue
		}
	}
}

func (e *Endpoint) newConnFromAccept(fd int, sa unix.Sockaddr) (*Connection, error) {
	if err := tuneConnSocket(fd); err != nil {
		return nil, err
	}

	var peer netaddr.Addr4
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		peer.IP = in4.Addr
		peer.Port = uint16(in4.Port)
	}

	slot, err := e.connPool.Alloc()
	if err != nil {
		return nil, tcperr.ErrPoolExhausted
	}
	c := &slot.Value
	*c = Connection{
		id:       uuid.New(),
		endpoint: e,
		slot:     slot,
		fd:       fd,
		peer:     peer,
	}

	tok, err := e.group.RegisterRead(fd, func() { e.onReadable(c) })
	if err != nil {
		e.connPool.Free(slot)
		return nil, err
	}
	c.readTok = tok
	c.registered = true
	return c, nil
}

// Release tears down every connection on this endpoint and stops
// accepting new ones. The endpoint's flush timer keeps running (it is
// owned by the shared reactor.Group) but it will find nothing left to
// drain.
func (e *Endpoint) Release() {
	if e.closed {
		return
	}
	e.closed = true

	if e.role == RoleServer {
		e.group.Deregister(e.listenTok)
		unix.Close(e.listenFD)
	}

	var victims []*Connection
	e.connPool.Each(func(s *pool.Slot[Connection]) bool {
		victims = append(victims, &s.Value)
		return true
	})
	for _, c := range victims {
		e.teardown(c, CloseReasonReleased)
	}
}

// CloseAll tears down every connection on this endpoint but, unlike
// Release, leaves the listen socket (if any) and both pools alive: the
// endpoint keeps accepting and a subsequent Connect/accept reuses the
// same connPool/chunkPool/wqueue. Grounded on the source's
// netio_tcp_connection_close_all, which is distinct from teardown-on-
// release precisely because it leaves the listener in place.
func (e *Endpoint) CloseAll() {
	var victims []*Connection
	e.connPool.Each(func(s *pool.Slot[Connection]) bool {
		victims = append(victims, &s.Value)
		return true
	})
	for _, c := range victims {
		e.teardown(c, CloseReasonCloseAll)
	}
}
