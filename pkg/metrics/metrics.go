package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the relay's collectors.
type Set struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	Events            *prometheus.CounterVec
}

// New registers the relay collectors on reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "maprelay_active_connections",
			Help: "Live transport connections.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "maprelay_active_rooms",
			Help: "Rooms with at least one visitor.",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "maprelay_events_total",
			Help: "Inbound client events by name.",
		}, []string{"event"}),
	}
}

// Handler exposes the given gatherer for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
