// Package handler provides the HTTP entry point for signaling sockets.
package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"huddle/pkg/socket"
	"huddle/signal/controller"
)

// Handler upgrades HTTP requests to signaling sockets.
type Handler struct {
	controller *controller.Controller
}

// New creates a new Handler.
func New(c *controller.Controller) *Handler {
	return &Handler{
		controller: c,
	}
}

// ServeHTTP handles the HTTP request and upgrades it to a socket connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := socket.New(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade socket")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close socket")
		}
	}()
	if err := h.controller.Process(conn); err != nil {
		log.Debug().Err(err).Msg("socket processing ended")
	}
}
