package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retro_events_total",
		Help: "Inbound realtime events by name and outcome",
	}, []string{"event", "outcome"})

	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retro_event_duration_seconds",
		Help:    "Time spent handling one inbound realtime event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"event"})

	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retro_connections",
		Help: "Currently connected realtime clients",
	})

	presenceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retro_presence_entries",
		Help: "Presence entries across all retros",
	})
)
