package tcp

import "golang.org/x/sys/unix"

// recvBufSize and sendBufSize are applied to every accepted or
// connected socket, matching the source's fixed 256KiB SO_RCVBUF /
// SO_SNDBUF tuning.
const (
	recvBufSize = 256 * 1024
	sendBufSize = 256 * 1024
)

// tuneConnSocket applies the per-connection socket options the source
// sets right after accept()/connect(): non-blocking mode and generous
// receive/send buffers.
func tuneConnSocket(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufSize); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sendBufSize); err != nil {
		return err
	}
	return suppressSIGPIPE(fd)
}

// tuneListenSocket applies the options the source sets on a freshly
// created listening socket: address reuse (so a restarted server can
// rebind immediately) and close-on-exec.
func tuneListenSocket(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	unix.CloseOnExec(fd)
	return nil
}

// tuneClientSocket applies the options the source sets only on
// outbound client connections: TCP_NODELAY (small framed messages
// shouldn't wait on Nagle) and SO_KEEPALIVE (detect a dead peer without
// relying on application traffic).
func tuneClientSocket(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	return nil
}

func isRetryable(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}
