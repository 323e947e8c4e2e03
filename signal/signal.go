// Package signal contains the signaling server that brokers sessions
// between meeting clients.
package signal

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/signal/controller"
	"huddle/signal/handler"
	"huddle/signal/middleware"
)

// Signal contains the server and configuration.
type Signal struct {
	server *http.Server
	conf   Config
}

// New creates a new instance of Signal.
func New(config Config, con *controller.Controller) *Signal {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler.New(con))

	mds := []middleware.Interceptor{
		middleware.NewCORS(),
		middleware.NewLogger(),
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		ReadTimeout: 2 * time.Second,
		Handler:     middleware.Set(mux, mds...),
	}
	return &Signal{
		server: srv,
		conf:   config,
	}
}

// Start runs the signal server.
func (s *Signal) Start() error {
	if s.conf.CertFile == "" || s.conf.KeyFile == "" {
		log.Info().Int("port", s.conf.Port).Msg("starting signal server without TLS")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	}

	log.Info().Int("port", s.conf.Port).Msg("starting signal server with TLS")
	if err := s.server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop shuts the signal server down.
func (s *Signal) Stop() error {
	return s.server.Close()
}
