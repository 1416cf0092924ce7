// Package netutil picks the address the artifact API listens on.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr means neither the preferred address nor any candidate could
// be bound.
var ErrNoBindAddr = errors.New("no available bind address")

// Listen binds preferred, or the first free candidate when preferred is busy
// and autoFallback is set. The returned listener is already bound, so the
// address cannot be taken between the check and the serve.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s: %w", preferred, err)
		}
		slog.Info("bind address busy, trying candidates", "preferred", preferred, "candidates", candidates)
	}

	for _, addr := range candidates {
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, nil
		}
	}
	return nil, ErrNoBindAddr
}
