// Package huddle wires the signaling server for session-based meetings.
package huddle

import (
	"fmt"

	"huddle/broker"
	"huddle/coordinator"
	"huddle/database"
	"huddle/database/memory"
	"huddle/metric"
	"huddle/roster"
	"huddle/signal"
	"huddle/signal/controller"
)

// Huddle contains servers and configuration.
type Huddle struct {
	broker      *broker.Broker
	database    database.Database
	roster      *roster.Roster
	coordinator *coordinator.Coordinator
	signal      *signal.Signal
	metric      *metric.Metrics
}

// New creates a new instance of Huddle.
func New(config Config) *Huddle {
	brk := broker.New()
	db := memory.New(config.Database)
	rst := roster.New()
	met := metric.New(config.Metrics)
	cod := coordinator.New(config.Coordinator, brk, db, rst, met)
	con := controller.New(brk, met)
	sig := signal.New(config.Signal, con)

	return &Huddle{
		broker:      brk,
		database:    db,
		roster:      rst,
		coordinator: cod,
		signal:      sig,
		metric:      met,
	}
}

// Start runs the coordinator, the metrics server, and the signal server.
func (h *Huddle) Start() error {
	h.metric.RegisterMetrics()
	h.metric.Start()
	h.metric.UpdateSystemMetrics()
	go h.coordinator.Start()
	if err := h.signal.Start(); err != nil {
		return fmt.Errorf("failed to start signal server: %w", err)
	}
	return nil
}

// Stop shuts the servers down.
func (h *Huddle) Stop() error {
	if err := h.signal.Stop(); err != nil {
		return fmt.Errorf("failed to stop signal server: %w", err)
	}
	return h.metric.Stop()
}
