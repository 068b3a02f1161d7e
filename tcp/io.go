package tcp

import "golang.org/x/sys/unix"

// readBufSize bounds a single recv() call. It is independent of the
// 64KiB chunk size used for stashed residual bytes.
const readBufSize = 64 * 1024

func (e *Endpoint) onReadable(c *Connection) {
	if c.closed {
		return
	}
	if cb := c.effectiveRecvAdmission(); cb != nil && cb(c) < 0 {
		return
	}

	var buf [readBufSize]byte
	n, err := unix.Read(c.fd, buf[:])
	switch {
	case n == 0 && err == nil:
		e.teardown(c, CloseReasonPeerClosed)
		return
	case err != nil:
		if isRetryable(err) {
			return
		}
		code := CloseReasonPeerClosed
		if errno, ok := err.(unix.Errno); ok {
			code = int(errno)
		}
		e.teardown(c, code)
		return
	}

	data := buf[:n]

	if c.relay != nil {
		// The relay peer may belong to a different Endpoint than the
		// one that just read this data, so route the write through
		// its own owning endpoint rather than this one's queue.
		c.relay.endpoint.send(c.relay, data)
		return
	}
	if c.effectiveParse() != nil {
		e.dispatchParse(c, data)
		return
	}
	if rf := c.effectiveRecv(); rf != nil {
		rf(c, data)
		return
	}
	if e.logger != nil {
		e.logger.Printf("tcpio: dropped %d bytes on connection %s (no receive handler)", n, c.id)
	}
}

// teardown implements CONN_CLEAR: it notifies the close callback,
// drops every queued write for this connection, releases the receive
// chunk chain back to the pool, clears relay links, deregisters the
// read event, closes the fd, and frees the connection slot.
func (e *Endpoint) teardown(c *Connection, code int) {
	if c.closed {
		return
	}
	c.closed = true

	if cb := c.effectiveClose(); cb != nil {
		cb(c, code)
	}

	e.teardownCore(c)
}

// teardownSilent runs CONN_CLEAR without notifying the close callback.
// It is used for a connection rejected by AcceptFunc before the
// application ever learns the connection existed, matching the
// source's __accept_event_callback, which clears a rejected
// connection directly with no close_func invocation.
func (e *Endpoint) teardownSilent(c *Connection) {
	if c.closed {
		return
	}
	c.closed = true

	e.teardownCore(c)
}

func (e *Endpoint) teardownCore(c *Connection) {
	e.wqueue.DeleteAll(c)
	e.purgeChain(c)
	c.clearRelayLinks()

	if c.registered {
		e.group.Deregister(c.readTok)
	}
	unix.Close(c.fd)

	e.connPool.Free(c.slot)
}

func (e *Endpoint) purgeChain(c *Connection) {
	next := c.head.next
	c.head.next = nil
	c.head.used = 0
	for next != nil {
		following := next.Value.next
		next.Value.next = nil
		next.Value.used = 0
		e.chunkPool.Free(next)
		next = following
	}
}
