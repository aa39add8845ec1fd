// Package transport exposes the master's WebSocket control channel and its
// parallel HTTP selector surface (§6): separate, concurrently bound HTTP and
// HTTPS listeners sharing one request mux.
package transport

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/dispatcher"
	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
)

// Server owns both listeners and the dispatcher they feed.
type Server struct {
	cfg  *config.Config
	disp *dispatcher.Dispatcher
	log  zerolog.Logger
}

// NewServer builds a Server bound to cfg's listener settings, dispatching
// every WebSocket request through disp.
func NewServer(cfg *config.Config, disp *dispatcher.Dispatcher) *Server {
	return &Server{
		cfg:  cfg,
		disp: disp,
		log:  log.WithComponent("transport"),
	}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/$health", withCORS(s.handleHealth))
	mux.HandleFunc("/$ws", s.handleWS)
	mux.HandleFunc("/$pick-frontend", withCORS(s.handlePickFrontend))
	mux.HandleFunc("/$pick-frontends", withCORS(s.handlePickFrontends))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// withCORS applies the fixed response headers required of every HTTP
// selector endpoint (§6): wide-open CORS and a non-persistent connection.
func withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Connection", "close")
		h(w, r)
	}
}

// ListenAndServe binds every configured listener and blocks until one of
// them returns an error. Both HTTP and HTTPS listeners, when configured,
// run concurrently against the same mux (§6 TLS).
func (s *Server) ListenAndServe() error {
	mux := s.mux()
	errCh := make(chan error, 2)
	started := 0

	if s.cfg.HTTPPort != 0 {
		started++
		addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
		go func() {
			s.log.Info().Str("addr", addr).Msg("starting HTTP listener")
			errCh <- http.ListenAndServe(addr, mux)
		}()
	}
	if s.cfg.HTTPSPort != 0 {
		started++
		addr := fmt.Sprintf(":%d", s.cfg.HTTPSPort)
		go func() {
			s.log.Info().Str("addr", addr).Msg("starting HTTPS listener")
			errCh <- http.ListenAndServeTLS(addr, s.cfg.CertFile, s.cfg.KeyFile, mux)
		}()
	}
	if started == 0 {
		return fmt.Errorf("no listeners configured: set http_port and/or https_port")
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
