// Package huddle wires the signaling server for session-based meetings.
package huddle

import (
	"huddle/coordinator"
	"huddle/database"
	"huddle/metric"
	"huddle/signal"
)

// Config contains the configuration for the whole server.
type Config struct {
	Signal      signal.Config
	Database    database.Config
	Coordinator coordinator.Config
	Metrics     metric.Config
}

// Validate validates every sub-configuration.
func (c Config) Validate() error {
	return c.Signal.Validate()
}
