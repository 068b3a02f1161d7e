package tcp

import "time"

// writeChunkSize bounds a single write-queue entry, matching the
// source's RW_BUFFER_SIZE split on append.
const writeChunkSize = 64 * 1024

type wentry struct {
	conn *Connection
	data []byte
}

// Send writes b to c. If c already has queued, undrained writes, b is
// appended to the queue (split into writeChunkSize pieces) to preserve
// ordering; otherwise Send attempts an immediate send(2) and queues
// whatever the kernel didn't accept.
func (e *Endpoint) Send(c *Connection, b []byte) (int, error) {
	if c.closed || len(b) == 0 {
		return 0, nil
	}

	if _, queued := e.wqueue.FindFirst(c); queued {
		e.enqueue(c, b)
		return len(b), nil
	}

	n, err := sendBytes(c.fd, b)
	if err != nil {
		if !isRetryable(err) {
			return 0, err
		}
		n = 0
	}
	if n < len(b) {
		e.enqueue(c, b[n:])
	}
	return n, nil
}

func (e *Endpoint) enqueue(c *Connection, b []byte) {
	for len(b) > 0 {
		n := len(b)
		if n > writeChunkSize {
			n = writeChunkSize
		}
		piece := make([]byte, n)
		copy(piece, b[:n])
		e.wqueue.Append(c, wentry{conn: c, data: piece})
		b = b[n:]
	}
}

// send is the internal relay path: it forwards bytes to the peer's
// socket via the normal queued Send, so a relay peer's own backlog is
// respected exactly like an application-level Send would be.
func (e *Endpoint) send(c *Connection, b []byte) {
	_, _ = e.Send(c, b)
}

// onFlushTimer drains up to cfg.DrainBatch write-queue entries and
// returns the next interval to wait: FastFlush if it made any progress
// (there may be more to drain on the next tick, or a deferred accept to
// retry), IdleFlush otherwise.
func (e *Endpoint) onFlushTimer() time.Duration {
	progressed := e.drain()

	if e.pendingAccept {
		e.pendingAccept = false
		if e.role == RoleServer {
			e.onAcceptable()
		}
		progressed = true
	}

	if progressed {
		return e.cfg.FastFlush
	}
	return e.cfg.IdleFlush
}

// drain attempts to send up to cfg.DrainBatch queued entries, one
// send(2) per entry, stopping early on EAGAIN/EWOULDBLOCK/EINTR or any
// other send error (the entry is left at the head of the queue either
// way, to preserve ordering — a fatal error will surface again on the
// connection's own read path or a subsequent application Send). It
// reports whether it made any forward progress.
func (e *Endpoint) drain() bool {
	progressed := false
	for i := 0; i < e.cfg.DrainBatch; i++ {
		var stop bool
		had := e.wqueue.WithHead(func(v *wentry) bool {
			if v.conn.closed {
				return true // connection already torn down; drop it
			}
			n, err := sendBytes(v.conn.fd, v.data)
			if err != nil {
				if !isRetryable(err) {
					if e.logger != nil {
						e.logger.Printf("tcpio: send on connection %s: %v", v.conn.id, err)
					}
				}
				stop = true
				return false
			}
			progressed = true
			if n >= len(v.data) {
				return true
			}
			v.data = v.data[n:]
			stop = true
			return false
		})
		if !had || stop {
			break
		}
	}
	return progressed
}
