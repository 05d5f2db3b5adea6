package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the project's timeouts. Upload endpoints accept
// multi-megabyte bodies, so the read timeout is generous.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
