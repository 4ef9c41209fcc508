// Package tlswarn emits a process-wide one-shot warning when the admin
// listener exposes basic-auth credentials without TLS.
package tlswarn

import (
	"net"
	"sync"

	"github.com/rs/zerolog"
)

var once sync.Once

// Exposed reports whether addr listens beyond the loopback interface.
// An empty or unparsable host counts as exposed.
func Exposed(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return true
	}
	if host == "localhost" {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsLoopback()
}

// LogPlaintext warns once per process if addr is exposed. Later calls are no-ops.
func LogPlaintext(logger zerolog.Logger, addr string) {
	if !Exposed(addr) {
		return
	}
	once.Do(func() {
		logger.Warn().
			Str("listen", addr).
			Msg("admin listener is reachable off-host over plain HTTP; basic auth credentials are sent unencrypted, put it behind a TLS proxy")
	})
}
