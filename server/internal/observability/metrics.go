package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate outcomes.
const (
	GateFresh     = "fresh"
	GateGenerated = "generated"
	GateFailed    = "failed"
)

// Preference write outcomes.
const (
	WritePrimary  = "primary"
	WriteFallback = "fallback"
	WriteConflict = "conflict"
)

var (
	// HTTP

	// HTTPRequestsTotal counts API requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamelogd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamelogd_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Recommendations

	// RecommendationGateTotal counts gate decisions by outcome.
	RecommendationGateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamelogd_recommendation_gate_total",
			Help: "Recommendation requests by gate outcome (fresh, generated, failed)",
		},
		[]string{"outcome"},
	)

	// RecommendationGenerateDuration tracks generator latency.
	RecommendationGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamelogd_recommendation_generate_duration_seconds",
			Help:    "Duration of recommendation generator calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// CircuitBreakerState exposes breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamelogd_circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	// Preferences

	// PreferenceWritesTotal counts preference writes by outcome.
	PreferenceWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamelogd_preference_writes_total",
			Help: "Preference record writes by outcome (primary, fallback, conflict)",
		},
		[]string{"outcome"},
	)

	// PreferenceMigrationsTotal counts legacy records migrated to ratings.
	PreferenceMigrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamelogd_preference_migrations_total",
			Help: "Legacy liked/disliked records migrated to half-star ratings",
		},
	)

	// Game metadata

	// GameCacheTotal counts game metadata lookups by cache result.
	GameCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamelogd_game_cache_total",
			Help: "Game metadata lookups by cache result (hit, miss)",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordGateOutcome records a recommendation gate decision.
func RecordGateOutcome(outcome string) {
	RecommendationGateTotal.WithLabelValues(outcome).Inc()
}

// RecordPreferenceWrite records where a preference write landed.
func RecordPreferenceWrite(outcome string) {
	PreferenceWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordGameCache records a game metadata cache hit or miss.
func RecordGameCache(hit bool) {
	if hit {
		GameCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	GameCacheTotal.WithLabelValues("miss").Inc()
}
