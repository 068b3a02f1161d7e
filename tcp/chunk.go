package tcp

import "github.com/jseow5177/tcpio/pool"

// chunkSize is the fixed size of every receive chunk, matching the
// source's 64KiB RECV_BUFFER_SIZE.
const chunkSize = 64 * 1024

// chunk is one link of a connection's receive-chunk chain: residual
// bytes stashed between reactor wake-ups because a parse callback
// could not consume everything delivered so far.
type chunk struct {
	data [chunkSize]byte
	used int
	next *pool.Slot[chunk]
}

// chainBytes sums the bytes held across head and its overflow chain.
func chainBytes(head *chunk) int {
	n := head.used
	for c := head.next; c != nil; c = c.Value.next {
		n += c.Value.used
	}
	return n
}

// gather copies the bytes held across head and its overflow chain into
// dst, which must have at least chainBytes(head) capacity, and returns
// the number of bytes written.
func gather(head *chunk, dst []byte) int {
	n := copy(dst, head.data[:head.used])
	for c := head.next; c != nil; c = c.Value.next {
		n += copy(dst[n:], c.Value.data[:c.Value.used])
	}
	return n
}
