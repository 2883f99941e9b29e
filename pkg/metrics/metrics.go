package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lingua"

// Stream outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics struct - Prometheus collectors for completions and model files.
// All methods are safe on a nil receiver so callers may run without metrics.
type Metrics struct {
	StreamsStarted  *prometheus.CounterVec
	StreamsFinished *prometheus.CounterVec
	StreamDuration  *prometheus.HistogramVec
	TokensStreamed  *prometheus.CounterVec
	ActiveStreams   *prometheus.GaugeVec
	MalformedLines  prometheus.Counter
	Downloads       *prometheus.CounterVec
	DownloadBytes   prometheus.Counter
	EngineInits     *prometheus.CounterVec
}

// New func - Registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StreamsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "streams_started_total",
			Help:      "Completion streams started by backend",
		}, []string{"backend"}),
		StreamsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "streams_finished_total",
			Help:      "Completion streams finished by backend and outcome",
		}, []string{"backend", "outcome"}),
		StreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "stream_duration_seconds",
			Help:      "Completion stream duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"backend", "outcome"}),
		TokensStreamed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "tokens_total",
			Help:      "Tokens delivered to callers by backend",
		}, []string{"backend"}),
		ActiveStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "active_streams",
			Help:      "Completion streams currently in flight",
		}, []string{"backend"}),
		MalformedLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "malformed_lines_total",
			Help:      "Event-stream lines skipped because they did not parse",
		}),
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "downloads_total",
			Help:      "Model downloads by outcome",
		}, []string{"outcome"}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "download_bytes_total",
			Help:      "Bytes written by successful model downloads",
		}),
		EngineInits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "init_attempts_total",
			Help:      "Inference context load attempts by preset and outcome",
		}, []string{"preset", "outcome"}),
	}
}

// StreamStarted func
func (m *Metrics) StreamStarted(backend string) {
	if m == nil {
		return
	}
	m.StreamsStarted.WithLabelValues(backend).Inc()
	m.ActiveStreams.WithLabelValues(backend).Inc()
}

// StreamFinished func
func (m *Metrics) StreamFinished(backend, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(backend).Dec()
	m.StreamsFinished.WithLabelValues(backend, outcome).Inc()
	m.StreamDuration.WithLabelValues(backend, outcome).Observe(elapsed.Seconds())
}

// TokenStreamed func
func (m *Metrics) TokenStreamed(backend string) {
	if m == nil {
		return
	}
	m.TokensStreamed.WithLabelValues(backend).Inc()
}

// MalformedLine func
func (m *Metrics) MalformedLine() {
	if m == nil {
		return
	}
	m.MalformedLines.Inc()
}

// DownloadFinished func
func (m *Metrics) DownloadFinished(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCompleted {
		m.DownloadBytes.Add(float64(bytes))
	}
}

// EngineInit func
func (m *Metrics) EngineInit(preset string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.EngineInits.WithLabelValues(preset, outcome).Inc()
}
