// Package pool implements a fixed-element-size object pool with a free
// list and grow-on-exhaust behavior. It exists so that connection and
// receive-chunk churn (accept/close bursts) never touches the system
// allocator on the hot path.
//
// Pool is not safe for concurrent use; callers in this module only ever
// touch a Pool from the single goroutine driving its owning reactor
// Group, per the single-threaded cooperative model described in the
// package docs of tcpio/tcp.
package pool

import "errors"

// ErrOutOfMemory is returned by New when the initial block cannot be
// allocated.
var ErrOutOfMemory = errors.New("pool: out of memory")

// ErrExhausted is returned by Alloc when the free list is empty and the
// pool has already grown to its configured max.
var ErrExhausted = errors.New("pool: exhausted")

// Slot wraps a pooled value with the bookkeeping the pool needs to walk
// the in-use set and to recycle the slot on Free. Callers receive a
// *Slot[T] from Alloc and must treat Value's previous contents as
// unspecified until they initialize the fields they need.
type Slot[T any] struct {
	inUse bool
	gen   uint64
	next  *Slot[T] // free-list link when not in use
	blk   int      // owning block index, for First/Next iteration
	off   int      // offset within the owning block

	Value T
}

// Generation returns a counter bumped every time this slot is reused.
// It lets a caller detect a stale reference to a slot that has since
// been freed and reallocated, defensively — pointer identity alone
// (unlike the arena+generation scheme in the original) is already
// stable in Go, so this is belt-and-braces, not load-bearing.
func (s *Slot[T]) Generation() uint64 { return s.gen }

// Pool is a fixed-element-size allocator with grow-on-exhaust.
type Pool[T any] struct {
	blocks  [][]Slot[T]
	free    *Slot[T]
	inUse   int
	total   int
	max     int // 0 = unbounded
}

// New creates a pool with an initial block of `initial` slots. max=0
// means unbounded growth; otherwise max caps the total slot count ever
// allocated (growth doubles toward the cap).
func New[T any](initial, max int) (*Pool[T], error) {
	if initial <= 0 {
		initial = 1
	}
	p := &Pool[T]{max: max}
	if err := p.growBy(initial); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool[T]) growBy(n int) error {
	if n <= 0 {
		return ErrOutOfMemory
	}
	blk := make([]Slot[T], n)
	idx := len(p.blocks)
	for i := n - 1; i >= 0; i-- {
		blk[i].blk = idx
		blk[i].off = i
		blk[i].next = p.free
		p.free = &blk[i]
	}
	p.blocks = append(p.blocks, blk)
	p.total += n
	return nil
}

// grow doubles the pool, capped at max (when max > 0). It is a no-op if
// the free list is already non-empty or the pool has hit its cap.
func (p *Pool[T]) grow() {
	if p.free != nil {
		return
	}
	if p.max > 0 && p.total >= p.max {
		return
	}
	n := p.total
	if p.max > 0 {
		if rest := p.max - p.total; rest < n {
			n = rest
		}
	}
	_ = p.growBy(n)
}

// Alloc returns a slot from the free list, growing the pool first if
// necessary. The slot's Value retains whatever it held the last time it
// was freed (or the zero value, the first time); the caller must
// initialize every field it depends on.
func (p *Pool[T]) Alloc() (*Slot[T], error) {
	if p.free == nil {
		p.grow()
		if p.free == nil {
			return nil, ErrExhausted
		}
	}
	s := p.free
	p.free = s.next
	s.next = nil
	s.inUse = true
	s.gen++
	p.inUse++
	return s, nil
}

// Free returns a slot to the free list. Double-free is silently
// ignored, matching the source's in-use-flag guard.
func (p *Pool[T]) Free(s *Slot[T]) {
	if s == nil || !s.inUse {
		return
	}
	s.inUse = false
	s.next = p.free
	p.free = s
	p.inUse--
}

// InUseCount returns the number of currently allocated slots.
func (p *Pool[T]) InUseCount() int { return p.inUse }

// Capacity returns the total number of slots ever allocated (in-use or
// free).
func (p *Pool[T]) Capacity() int { return p.total }

// IsValid reports whether s is currently allocated from this pool.
func (p *Pool[T]) IsValid(s *Slot[T]) bool {
	return s != nil && s.inUse
}

// First returns the first in-use slot in block-then-offset order, or
// nil if the pool is empty. Iteration order is stable across Alloc but
// not across a Free of the slot currently being visited.
func (p *Pool[T]) First() *Slot[T] {
	for b := 0; b < len(p.blocks); b++ {
		blk := p.blocks[b]
		for i := range blk {
			if blk[i].inUse {
				return &blk[i]
			}
		}
	}
	return nil
}

// Next returns the next in-use slot after s in block-then-offset order,
// or nil when s was the last one.
func (p *Pool[T]) Next(s *Slot[T]) *Slot[T] {
	if s == nil {
		return nil
	}
	b, i := s.blk, s.off+1
	for ; b < len(p.blocks); b, i = b+1, 0 {
		blk := p.blocks[b]
		for ; i < len(blk); i++ {
			if blk[i].inUse {
				return &blk[i]
			}
		}
	}
	return nil
}

// Each calls fn for every in-use slot, in First/Next order. fn may
// return false to stop iterating early. It is safe against fn freeing
// the slot it was just handed (but not slots later in iteration order).
func (p *Pool[T]) Each(fn func(*Slot[T]) bool) {
	for s := p.First(); s != nil; {
		next := p.Next(s)
		if !fn(s) {
			return
		}
		s = next
	}
}
