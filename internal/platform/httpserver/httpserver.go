package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server tuned for the funnel: resume uploads and the
// slow upstream analysis call need generous read and write windows.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
