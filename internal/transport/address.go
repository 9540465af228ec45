package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedAddress is returned by parseMultiaddr when the input does
// not match the accepted address shape.
var ErrMalformedAddress = errors.New("transport: malformed address")

// parseMultiaddr accepts the multi-component address form spec.md §6
// requires for listen_on and dial: "/ip4/<a>/tcp/<port>". It returns the
// host and port components.
func parseMultiaddr(addr string) (host string, port int, err error) {
	parts := strings.Split(strings.Trim(addr, "/"), "/")
	if len(parts) != 4 || parts[0] != "ip4" || parts[2] != "tcp" {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedAddress, addr)
	}

	host = parts[1]
	if host == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedAddress, addr)
	}

	port, err = strconv.Atoi(parts[3])
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedAddress, addr)
	}

	return host, port, nil
}

// formatMultiaddr renders a host/port pair back into the accepted
// address shape, used when reporting the node's own listen address.
func formatMultiaddr(host string, port int) string {
	return fmt.Sprintf("/ip4/%s/tcp/%d", host, port)
}
