package tcp

// Close reason codes passed to a CloseFunc. Non-negative values other
// than CloseReasonPeerClosed are the errno observed on a failed recv
// (a failed send does not tear the connection down); the negative codes distinguish the teardown paths that have no
// associated errno.
const (
	CloseReasonPeerClosed = 0  // recv() returned 0
	CloseReasonReleased   = -1 // Endpoint.Release tore every connection down
	CloseReasonCloseAll   = -2 // Endpoint.CloseAll tore every connection down, endpoint still live
	CloseReasonExplicit   = -3 // Connection.Close called by the application
)

// AcceptFunc is invoked once per newly accepted connection, right after
// it is registered for read events. Returning a negative value rejects
// the connection (it is closed immediately, matching the source's
// accept-time admission check).
type AcceptFunc func(c *Connection) int

// AdmissionFunc gates accept() on a wake-up of the listening socket. A
// negative return skips accept() (pending connections stay in the
// kernel backlog), takes the listening socket out of the poll set, and
// schedules the check again on the next flush tick; Endpoint.Resume
// schedules that same re-check.
type AdmissionFunc func(e *Endpoint) int

// ConnAdmissionFunc is the per-connection counterpart, used to gate
// recv() on a connection-specific condition (e.g. an application-level
// flow-control window). A negative return skips recv() for that
// wake-up only: the connection stays in the poll set, so while unread
// data is pending the check runs again on every poll pass.
type ConnAdmissionFunc func(c *Connection) int

// ReceiveFunc delivers bytes read from a connection: either a raw
// chunk (no parse callback configured) or one framed message (a parse
// callback is configured and has successfully decoded one frame).
type ReceiveFunc func(c *Connection, b []byte)

// CloseFunc is invoked exactly once when a connection is torn down. It
// is not invoked for a connection rejected by AcceptFunc.
// code is one of the CloseReason constants or a positive errno.
type CloseFunc func(c *Connection, code int)

// ParseFunc decodes one frame from the front of data. consumed == 0
// with a nil error means data does not yet contain a complete frame;
// consumed > 0 returns the decoded message and how many input bytes it
// occupied; a non-nil error reports a protocol violation (the
// connection's buffered data is dropped, but the connection itself is
// left open, per the parse-error handling design decision).
type ParseFunc func(data []byte) (message []byte, consumed int, err error)
