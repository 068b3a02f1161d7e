package tcp

import (
	"github.com/google/uuid"
	"github.com/jseow5177/tcpio/tcperr"
	"golang.org/x/sys/unix"
)

// Connect opens an outbound connection for a RoleClient endpoint and
// registers it for read events. Each call opens a new connection to the
// endpoint's remote address. Calling Connect on a RoleServer endpoint
// returns tcperr.ErrInvalidAddress.
func (e *Endpoint) Connect() (*Connection, error) {
	if e.role != RoleClient {
		return nil, tcperr.ErrInvalidAddress
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	sa := &unix.SockaddrInet4{Port: int(e.clientAddr.Port), Addr: e.clientAddr.IP}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, tcperr.ErrConnectFailed
	}

	if err := tuneConnSocket(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := tuneClientSocket(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}

	slot, err := e.connPool.Alloc()
	if err != nil {
		unix.Close(fd)
		return nil, tcperr.ErrPoolExhausted
	}
	c := &slot.Value
	*c = Connection{
		id:       uuid.New(),
		endpoint: e,
		slot:     slot,
		fd:       fd,
		peer:     e.clientAddr,
	}

	tok, err := e.group.RegisterRead(fd, func() { e.onReadable(c) })
	if err != nil {
		e.connPool.Free(slot)
		unix.Close(fd)
		return nil, err
	}
	c.readTok = tok
	c.registered = true

	if e.acceptCB != nil && e.acceptCB(c) < 0 {
		e.teardownSilent(c)
		return nil, tcperr.ErrConnectFailed
	}
	return c, nil
}
