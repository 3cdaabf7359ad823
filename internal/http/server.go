// Package http arma el servidor HTTP del broker y su instrumentación.
package http

import (
	"net/http"
	"time"
)

// NewServer crea el http.Server con timeouts conservadores. El arranque
// y el shutdown los maneja el caller.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
