// Package reactor implements the event loop every endpoint in this
// module is driven by: a single poll(2)-based readiness loop plus a
// small set of interval timers, with no locking, run from exactly one
// goroutine. It is the Go analogue of the source's libevent event_base
// group — the structural split between a shared poller (Group) and the
// endpoints registered on it mirrors gaio's watcher/poller split
// (pfd.Wait driven from its own goroutine, fd state looked up by the
// caller) and the original's init_group()/tcp_t-per-group design.
//
// A Group is not safe for concurrent registration from multiple
// goroutines once Run has started: endpoints must register new fds and
// timers only from within a callback already running on the Group's
// own goroutine, consistent with the rest of this module's
// single-threaded cooperative model.
package reactor

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Group operations invoked after Close.
var ErrClosed = errors.New("reactor: group closed")

// Token identifies a registration (a read-interest fd or a timer) so it
// can later be deregistered.
type Token uint64

func readToken(fd int) Token  { return Token(fd) << 1 }
func timerToken(id uint64) Token { return Token(id)<<1 | 1 }

type readReg struct {
	fd int
	cb func()
}

type timerReg struct {
	tok      Token
	next     time.Time
	interval time.Duration
	cb       func() time.Duration
}

// Group owns one poll(2) readiness set and the timers layered on top
// of it. Endpoints register their listening and connection fds here;
// multiple endpoints may deliberately share a Group to run on one OS
// thread, per the source's grouping of tcp_t instances onto one
// event_base.
type Group struct {
	reads     map[int]*readReg
	timers    map[Token]*timerReg
	nextTimer uint64
	closed    bool
}

// NewGroup creates an empty reactor Group. Call Run to start polling.
func NewGroup() *Group {
	return &Group{
		reads:  make(map[int]*readReg),
		timers: make(map[Token]*timerReg),
	}
}

// RegisterRead arms fd for read readiness; cb runs on the Group's Run
// goroutine whenever fd becomes readable (or reports POLLHUP/POLLERR —
// the callback is expected to attempt the read and handle EOF/error
// itself, matching recv()'s own EOF/error reporting).
func (g *Group) RegisterRead(fd int, cb func()) (Token, error) {
	if g.closed {
		return 0, ErrClosed
	}
	g.reads[fd] = &readReg{fd: fd, cb: cb}
	return readToken(fd), nil
}

// Deregister removes a previously registered read interest or timer.
func (g *Group) Deregister(tok Token) {
	if tok&1 == 1 {
		delete(g.timers, tok)
		return
	}
	delete(g.reads, int(tok>>1))
}

// RegisterTimer arms a recurring timer. cb is invoked when interval
// elapses and must return the interval to wait before its next firing
// — this is how the TCP endpoint's flush timer oscillates between a
// fast interval while draining and a slow idle interval, without baking
// that policy into the reactor itself.
func (g *Group) RegisterTimer(interval time.Duration, cb func() time.Duration) Token {
	g.nextTimer++
	tok := timerToken(g.nextTimer)
	g.timers[tok] = &timerReg{
		tok:      tok,
		next:     time.Now().Add(interval),
		interval: interval,
		cb:       cb,
	}
	return tok
}

// maxPollWait bounds how long a single poll(2) call blocks, so Run
// notices ctx cancellation and Close promptly even when no timer is
// due soon.
const maxPollWait = 200 * time.Millisecond

// Run drives the poll loop until ctx is cancelled or Close is called.
// It must be called from the goroutine that owns this Group; endpoints
// sharing a Group must arrange for exactly one of them to call Run.
func (g *Group) Run(ctx context.Context) error {
	for {
		if g.closed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		timeout := g.nextTimeout()
		pfds := g.buildPollFDs()

		n, err := unix.Poll(pfds, int(timeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		if n > 0 {
			for _, pfd := range pfds {
				if pfd.Revents == 0 {
					continue
				}
				if reg, ok := g.reads[int(pfd.Fd)]; ok {
					reg.cb()
				}
			}
		}

		g.fireDueTimers()
	}
}

func (g *Group) buildPollFDs() []unix.PollFd {
	pfds := make([]unix.PollFd, 0, len(g.reads))
	for fd := range g.reads {
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	return pfds
}

func (g *Group) nextTimeout() time.Duration {
	wait := maxPollWait
	now := time.Now()
	for _, tm := range g.timers {
		if d := tm.next.Sub(now); d < wait {
			if d < 0 {
				d = 0
			}
			wait = d
		}
	}
	return wait
}

func (g *Group) fireDueTimers() {
	now := time.Now()
	for _, tm := range g.timers {
		if now.Before(tm.next) {
			continue
		}
		next := tm.cb()
		tm.interval = next
		tm.next = now.Add(next)
	}
}

// Close marks the group closed; the next iteration of a running Run
// loop returns nil. Close does not close registered fds — callers own
// those.
func (g *Group) Close() error {
	g.closed = true
	return nil
}
