package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nimctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	lobbyConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "connections_total",
			Help:      "Accepted player connections.",
		},
		[]string{"transport"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "active_sessions",
			Help:      "Games currently in progress.",
		},
	)
	gameSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "sessions_total",
			Help:      "Finished games by outcome.",
		},
		[]string{"outcome"},
	)
	gameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "session_duration_seconds",
			Help:      "Game duration from first PLAY to OVER.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	gameMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "moves_total",
			Help:      "Moves received by result.",
		},
		[]string{"result"},
	)
	failFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "fail_frames_total",
			Help:      "FAIL frames sent by code.",
		},
		[]string{"code"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			lobbyConnections,
			activeSessions,
			gameSessions,
			gameDuration,
			gameMoves,
			failFrames,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordConnection counts one accepted stream ("tcp", "tls" or "ws").
func RecordConnection(transport string) {
	RegisterMetrics()
	lobbyConnections.WithLabelValues(transport).Inc()
}

func SessionStarted() {
	RegisterMetrics()
	activeSessions.Inc()
}

// SessionEnded records a finished game. outcome is "win", "forfeit" or "cancelled".
func SessionEnded(outcome string, duration time.Duration) {
	RegisterMetrics()
	activeSessions.Dec()
	gameSessions.WithLabelValues(outcome).Inc()
	gameDuration.Observe(duration.Seconds())
}

func RecordMove(result string) {
	RegisterMetrics()
	gameMoves.WithLabelValues(result).Inc()
}

func RecordFailFrame(code int) {
	RegisterMetrics()
	failFrames.WithLabelValues(strconv.Itoa(code)).Inc()
}
