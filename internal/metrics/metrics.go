package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edurumble_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edurumble_quiz_generations_total",
			Help: "Quiz generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	Submissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edurumble_quiz_submissions_total",
			Help: "Participant submissions recorded",
		},
	)

	LiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edurumble_live_rooms",
			Help: "Open live leaderboard rooms",
		},
	)
)

// GenerationOutcome counts one generation attempt.
func GenerationOutcome(outcome string) {
	generations.WithLabelValues(outcome).Inc()
}
