// Package prommetrics implements the roomcast Metrics interface on
// Prometheus collectors.
package prommetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roomcast/roomcast"
)

// Metrics exports roomcast observations as Prometheus metrics.
type Metrics struct {
	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	frames       *prometheus.CounterVec
	frameErrors  *prometheus.CounterVec
	broadcasts   prometheus.Counter
	droppedSends prometheus.Counter
}

var _ roomcast.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to use the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomcast_connections",
			Help: "Live socket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomcast_rooms",
			Help: "Live rooms.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcast_frames_total",
			Help: "Inbound frames by verb.",
		}, []string{"verb"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcast_frame_errors_total",
			Help: "Error acknowledgements by verb.",
		}, []string{"verb"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_broadcasts_total",
			Help: "Room broadcasts issued.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_dropped_sends_total",
			Help: "Outbound frames dropped on slow or closed connections.",
		}),
	}

	reg.MustRegister(m.connections, m.rooms, m.frames, m.frameErrors,
		m.broadcasts, m.droppedSends)
	return m
}

func (m *Metrics) IncrementConnections() { m.connections.Inc() }
func (m *Metrics) DecrementConnections() { m.connections.Dec() }

func (m *Metrics) IncrementFrames(verb string)      { m.frames.WithLabelValues(verb).Inc() }
func (m *Metrics) IncrementFrameErrors(verb string) { m.frameErrors.WithLabelValues(verb).Inc() }

func (m *Metrics) SetRoomCount(count int) { m.rooms.Set(float64(count)) }

func (m *Metrics) IncrementBroadcasts()   { m.broadcasts.Inc() }
func (m *Metrics) IncrementDroppedSends() { m.droppedSends.Inc() }

// Handler exposes the default registry, typically mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
