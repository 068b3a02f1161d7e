// Package queue implements a keyed FIFO: a single insertion-ordered
// queue that is simultaneously indexed by key, so a caller can both
// drain it in arrival order and look up (or drop) every entry for one
// key in one call. It backs the TCP endpoint's per-connection write
// queue, keyed by the connection's own pointer identity.
//
// Entries are allocated from an inner pool.Pool rather than the heap,
// the way gaio's watcher keeps per-fd read/write waiters on
// container/list elements backed by a pool instead of ad hoc
// allocation.
package queue

import (
	"container/list"

	"github.com/jseow5177/tcpio/pool"
)

type node[K comparable, V any] struct {
	key       K
	value     V
	orderElem *list.Element
	indexElem *list.Element
}

// Queue is a FIFO queue of values additionally indexed by key. Multiple
// entries may share a key; FindFirst returns the oldest surviving entry
// for that key and DeleteAll removes every entry for it. Queue is not
// safe for concurrent use.
type Queue[K comparable, V any] struct {
	order   *list.List // of *pool.Slot[node[K,V]], global arrival order
	index   map[K]*list.List
	entries *pool.Pool[node[K, V]]
}

// New creates an empty keyed queue. initial sizes the backing entry
// pool; it grows on demand like any other pool.Pool.
func New[K comparable, V any](initial int) *Queue[K, V] {
	if initial <= 0 {
		initial = 16
	}
	p, err := pool.New[node[K, V]](initial, 0)
	if err != nil {
		// pool.New with max=0 only fails if initial rounds to <= 0,
		// which New already guards against above.
		panic(err)
	}
	return &Queue[K, V]{
		order:   list.New(),
		index:   make(map[K]*list.List),
		entries: p,
	}
}

// Append adds value to the tail of the queue under key.
func (q *Queue[K, V]) Append(key K, value V) {
	slot, err := q.entries.Alloc()
	if err != nil {
		// pool.New always passes max=0 (unbounded), so Alloc cannot
		// be exhausted; this path exists only to make a future
		// bounded entries pool safe to introduce.
		panic(err)
	}
	slot.Value.key = key
	slot.Value.value = value

	idx, ok := q.index[key]
	if !ok {
		idx = list.New()
		q.index[key] = idx
	}

	slot.Value.orderElem = q.order.PushBack(slot)
	slot.Value.indexElem = idx.PushBack(slot)
}

// Len returns the total number of queued entries across all keys.
func (q *Queue[K, V]) Len() int { return q.order.Len() }

// PeekHead returns the oldest entry in the queue without removing it.
func (q *Queue[K, V]) PeekHead() (V, bool) {
	var zero V
	front := q.order.Front()
	if front == nil {
		return zero, false
	}
	slot := front.Value.(*pool.Slot[node[K, V]])
	return slot.Value.value, true
}

// PopHead removes and returns the oldest entry in the queue.
func (q *Queue[K, V]) PopHead() (V, bool) {
	var zero V
	front := q.order.Front()
	if front == nil {
		return zero, false
	}
	slot := front.Value.(*pool.Slot[node[K, V]])
	q.removeSlot(slot)
	return slot.Value.value, true
}

// WithHead lets the caller mutate the oldest entry's value in place (to
// shrink a partially-sent write-queue buffer, for instance) and decide
// whether to remove it. fn returns true to pop the entry after
// mutating it, false to leave it at the head. WithHead reports whether
// there was a head entry to operate on at all.
func (q *Queue[K, V]) WithHead(fn func(v *V) (remove bool)) bool {
	front := q.order.Front()
	if front == nil {
		return false
	}
	slot := front.Value.(*pool.Slot[node[K, V]])
	if fn(&slot.Value.value) {
		q.removeSlot(slot)
	}
	return true
}

// FindFirst returns the oldest entry queued under key, without
// removing it.
func (q *Queue[K, V]) FindFirst(key K) (V, bool) {
	var zero V
	idx, ok := q.index[key]
	if !ok || idx.Len() == 0 {
		return zero, false
	}
	slot := idx.Front().Value.(*pool.Slot[node[K, V]])
	return slot.Value.value, true
}

// DeleteAll removes every entry queued under key and returns how many
// were removed.
func (q *Queue[K, V]) DeleteAll(key K) int {
	idx, ok := q.index[key]
	if !ok {
		return 0
	}
	n := 0
	for e := idx.Front(); e != nil; {
		next := e.Next()
		slot := e.Value.(*pool.Slot[node[K, V]])
		q.order.Remove(slot.Value.orderElem)
		q.entries.Free(slot)
		n++
		e = next
	}
	delete(q.index, key)
	return n
}

func (q *Queue[K, V]) removeSlot(slot *pool.Slot[node[K, V]]) {
	key := slot.Value.key
	q.order.Remove(slot.Value.orderElem)
	if idx, ok := q.index[key]; ok {
		idx.Remove(slot.Value.indexElem)
		if idx.Len() == 0 {
			delete(q.index, key)
		}
	}
	q.entries.Free(slot)
}
