package tcp

import (
	"github.com/valyala/bytebufferpool"
)

// dispatchParse implements the §4.3.3 parse dispatch contract: gather
// any residual bytes stashed from a previous wake-up together with the
// freshly read data, repeatedly call the parse callback, deliver every
// fully decoded frame to the receive callback, and stash whatever is
// left over for next time. A parse error drops the entire buffered
// residual for this connection (resolution (b) of the parse-error
// design note) but leaves the connection itself open.
func (e *Endpoint) dispatchParse(c *Connection, data []byte) {
	pf := c.effectiveParse()
	residual := chainBytes(&c.head)

	var cursor []byte
	var bb *bytebufferpool.ByteBuffer
	if residual > 0 {
		bb = bytebufferpool.Get()
		bb.B = bb.B[:0]
		grow := bb.B
		if cap(grow) < residual {
			grow = make([]byte, residual)
		}
		grow = grow[:residual]
		gather(&c.head, grow)
		bb.B = append(grow, data...)
		cursor = bb.B
		e.purgeChain(c)
	} else {
		cursor = data
	}

	for len(cursor) > 0 {
		msg, consumed, err := pf(cursor)
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("tcpio: parse error on connection %s: %v", c.id, err)
			}
			if bb != nil {
				bytebufferpool.Put(bb)
			}
			return
		}
		if consumed == 0 {
			break
		}
		if rf := c.effectiveRecv(); rf != nil && msg != nil {
			rf(c, msg)
		}
		cursor = cursor[consumed:]
	}

	if len(cursor) > 0 {
		e.stash(c, cursor)
	}
	if bb != nil {
		bytebufferpool.Put(bb)
	}
}

// stash copies the undecoded remainder back into the connection's
// receive-chunk chain: the embedded head chunk first, then as many
// pool-allocated overflow chunks as needed.
func (e *Endpoint) stash(c *Connection, data []byte) {
	n := copy(c.head.data[:], data)
	c.head.used = n
	data = data[n:]

	tail := &c.head
	for len(data) > 0 {
		slot, err := e.chunkPool.Alloc()
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("tcpio: chunk pool exhausted stashing residual for connection %s, dropping %d bytes", c.id, len(data))
			}
			return
		}
		slot.Value.next = nil
		n := copy(slot.Value.data[:], data)
		slot.Value.used = n
		data = data[n:]

		tail.next = slot
		tail = &slot.Value
	}
}
