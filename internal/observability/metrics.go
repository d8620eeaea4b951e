package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Claim outcome labels.
const (
	ClaimOutcomeWon    = "won"
	ClaimOutcomeLost   = "lost"
	ClaimOutcomeClosed = "closed"
)

// Metrics exposes service counters via the default prometheus registry.
// All methods are nil-safe so tests can run without a registry.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ClaimOutcomes *prometheus.CounterVec
	Transitions   *prometheus.CounterVec

	RoomsActive   prometheus.Gauge
	JoinsRejected *prometheus.CounterVec
	SignalsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns all service metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verification_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "path"}),

		ClaimOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_claim_outcomes_total",
			Help: "Claim attempts by outcome",
		}, []string{"outcome"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_session_transitions_total",
			Help: "Session status transitions by target state",
		}, []string{"to"}),

		RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "verification_rooms_active",
			Help: "Rooms with at least one live connection",
		}),

		JoinsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_room_joins_rejected_total",
			Help: "Room joins rejected at the real-time boundary",
		}, []string{"reason"}),

		SignalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_signals_total",
			Help: "Relayed signaling frames by type and result",
		}, []string{"type", "result"}),
	}
}

// RecordRequest observes a completed HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordClaim counts a claim attempt outcome.
func (m *Metrics) RecordClaim(outcome string) {
	if m == nil {
		return
	}
	m.ClaimOutcomes.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a committed status transition.
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

// SetRoomsActive tracks the live room count.
func (m *Metrics) SetRoomsActive(n int) {
	if m == nil {
		return
	}
	m.RoomsActive.Set(float64(n))
}

// RecordJoinRejected counts a rejected room join.
func (m *Metrics) RecordJoinRejected(reason string) {
	if m == nil {
		return
	}
	m.JoinsRejected.WithLabelValues(reason).Inc()
}

// RecordSignal counts a relayed frame.
func (m *Metrics) RecordSignal(msgType, result string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(msgType, result).Inc()
}
