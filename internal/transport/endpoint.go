package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrInsecureContext is returned by [CheckSecureContext] when the origin is
// neither served over https nor a loopback host. Capture must not start from
// such an origin.
var ErrInsecureContext = errors.New("transport: microphone requires https or localhost")

// CheckSecureContext reports whether origin qualifies as a secure context:
// an https origin, or any origin whose host is localhost or a loopback
// address.
func CheckSecureContext(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("transport: parse origin %q: %w", origin, err)
	}
	if u.Scheme == "https" {
		return nil
	}
	if isLoopback(u.Hostname()) {
		return nil
	}
	return fmt.Errorf("%w: origin %q", ErrInsecureContext, origin)
}

// Endpoint derives the WebSocket URL for path on origin: wss for https
// origins, ws otherwise, keeping the origin's host and port.
func Endpoint(origin, path string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("transport: parse origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("transport: origin %q has no host", origin)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	ep := url.URL{Scheme: scheme, Host: u.Host, Path: path}
	return ep.String(), nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
