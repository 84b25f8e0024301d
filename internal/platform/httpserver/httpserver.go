// Package httpserver builds the process HTTP server for the audit API.
package httpserver

import (
	"net/http"
	"time"
)

// New wraps the router in a server with bounded header reads and idle
// keep-alives, so a stalled client cannot pin a connection. Per-request
// deadlines come from the Timeout middleware, not from here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
