// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/cpu"
)

// systemSampleInterval is how often system-level metrics are refreshed.
const systemSampleInterval = 5 * time.Second

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer         *http.Server
	config             Config
	socketConnections  prometheus.Gauge
	activeSessions     prometheus.Gauge
	activeParticipants prometheus.Gauge
	relayedSignals     prometheus.Counter
	cpuUsage           prometheus.Gauge
	memoryUsage        prometheus.Gauge
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		socketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signal_socket_connections",
			Help: "Current number of signaling socket connections.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of live sessions.",
		}),
		activeParticipants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_participants",
			Help: "Current number of session participants.",
		}),
		relayedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayed_signals_total",
			Help: "Total number of signaling payloads relayed between peers.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
	}
}

// RegisterMetrics registers custom metrics with Prometheus.
func (m *Metrics) RegisterMetrics() {
	prometheus.MustRegister(m.socketConnections)
	prometheus.MustRegister(m.activeSessions)
	prometheus.MustRegister(m.activeParticipants)
	prometheus.MustRegister(m.relayedSignals)
	prometheus.MustRegister(m.cpuUsage)
	prometheus.MustRegister(m.memoryUsage)
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	m.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.config.Port),
		Handler: promhttp.Handler(),
	}

	go func() {
		log.Info().Int("port", m.config.Port).Str("path", m.config.Path).Msg("starting metrics server")
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("metrics server failed")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.httpServer != nil {
		log.Info().Int("port", m.config.Port).Msg("stopping metrics server")
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics collects and updates system-level metrics.
func (m *Metrics) UpdateSystemMetrics() {
	go func() {
		for {
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.memoryUsage.Set(float64(memStats.Alloc))

			if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
				m.cpuUsage.Set(percentages[0])
			}

			time.Sleep(systemSampleInterval)
		}
	}()
}

// IncrementSocketConnections increments the signaling socket connection count.
func (m *Metrics) IncrementSocketConnections() {
	m.socketConnections.Inc()
}

// DecrementSocketConnections decrements the signaling socket connection count.
func (m *Metrics) DecrementSocketConnections() {
	m.socketConnections.Dec()
}

// IncrementActiveSessions increments the live session count.
func (m *Metrics) IncrementActiveSessions() {
	m.activeSessions.Inc()
}

// DecrementActiveSessions decrements the live session count.
func (m *Metrics) DecrementActiveSessions() {
	m.activeSessions.Dec()
}

// IncrementActiveParticipants increments the participant count.
func (m *Metrics) IncrementActiveParticipants() {
	m.activeParticipants.Inc()
}

// DecrementActiveParticipants decrements the participant count.
func (m *Metrics) DecrementActiveParticipants() {
	m.activeParticipants.Dec()
}

// IncrementRelayedSignals counts one relayed signaling payload.
func (m *Metrics) IncrementRelayedSignals() {
	m.relayedSignals.Inc()
}
