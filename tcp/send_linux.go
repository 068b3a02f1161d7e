//go:build linux

package tcp

import "golang.org/x/sys/unix"

// suppressSIGPIPE is a no-op on Linux: writes use MSG_NOSIGNAL per call
// instead of a socket-wide option.
func suppressSIGPIPE(fd int) error { return nil }

// sendBytes writes b to fd without raising SIGPIPE if the peer has
// already closed its end, matching the source's use of MSG_NOSIGNAL on
// every send(2).
func sendBytes(fd int, b []byte) (int, error) {
	return unix.Send(fd, b, unix.MSG_NOSIGNAL)
}
