// Package netaddr parses and formats the numeric "host:port" addresses
// this module accepts. Addresses are always IPv4 literals; there is no
// DNS resolution step, matching the scope note that name resolution is
// a caller concern.
package netaddr

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrInvalidAddress is returned when a string is not a numeric
// "a.b.c.d:port" IPv4 address.
var ErrInvalidAddress = errors.New("netaddr: invalid address")

// Addr4 is a resolved IPv4 address and port.
type Addr4 struct {
	IP   [4]byte
	Port uint16
}

// String renders a as "a.b.c.d:port".
func (a Addr4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// Parse parses s as a literal IPv4 "host:port" pair. It never performs
// DNS resolution: a non-numeric host is rejected with ErrInvalidAddress.
func Parse(s string) (Addr4, error) {
	var a Addr4

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return a, fmt.Errorf("%w: %q is not a numeric address", ErrInvalidAddress, host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return a, fmt.Errorf("%w: %q is not IPv4", ErrInvalidAddress, host)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return a, fmt.Errorf("%w: bad port %q", ErrInvalidAddress, portStr)
	}

	copy(a.IP[:], ip4)
	a.Port = uint16(port)
	return a, nil
}
