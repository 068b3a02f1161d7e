//go:build !linux

package tcp

import "golang.org/x/sys/unix"

// suppressSIGPIPE sets SO_NOSIGPIPE once at connection setup, since
// platforms outside Linux (BSD, Darwin) have no per-call MSG_NOSIGNAL.
func suppressSIGPIPE(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}

func sendBytes(fd int, b []byte) (int, error) {
	return unix.Write(fd, b)
}
