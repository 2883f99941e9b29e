package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStreamLifecycleCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StreamStarted("remote")
	m.TokenStreamed("remote")
	m.TokenStreamed("remote")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams.WithLabelValues("remote")))

	m.StreamFinished("remote", OutcomeCompleted, 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamsStarted.WithLabelValues("remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamsFinished.WithLabelValues("remote", OutcomeCompleted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensStreamed.WithLabelValues("remote")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveStreams.WithLabelValues("remote")))
}

func TestDownloadAndEngineCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.DownloadFinished(OutcomeCompleted, 1024)
	m.DownloadFinished(OutcomeFailed, 512)
	m.EngineInit("optimistic", errors.New("mlock failed"))
	m.EngineInit("conservative", nil)
	m.MalformedLine()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.DownloadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineInits.WithLabelValues("optimistic", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineInits.WithLabelValues("conservative", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedLines))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StreamStarted("local")
		m.TokenStreamed("local")
		m.StreamFinished("local", OutcomeCancelled, time.Second)
		m.MalformedLine()
		m.DownloadFinished(OutcomeCompleted, 1)
		m.EngineInit("optimistic", nil)
	})
}
