package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer hosts the worker's ops surface (health and readiness). The
// worker exposes no other HTTP endpoints; tasks arrive through the queue.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds a server on the configured port. Ops requests are
// tiny, so the header read timeout stays short regardless of the
// configured body timeouts.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Start serves until Shutdown is called or the listener fails. It returns
// http.ErrServerClosed on a clean shutdown, matching http.Server.
func (s *HTTPServer) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
