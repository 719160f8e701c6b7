// Package observability groups the Prometheus instruments for the voice session core.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the session core.
type Metrics struct {
	SessionState      *prometheus.GaugeVec
	AudioFramesIn     prometheus.Counter
	AudioFramesOut    prometheus.Counter
	FramesDropped     prometheus.Counter
	TurnsCompleted    prometheus.Counter
	Interruptions     prometheus.Counter
	ToolCalls         *prometheus.CounterVec
	FirstAudioLatency prometheus.Histogram
}

// NewMetrics registers and returns the instrument set under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		AudioFramesIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_in_total",
			Help:      "Microphone frames sent to the remote session.",
		}),
		AudioFramesOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_out_total",
			Help:      "Remote audio chunks scheduled for playback.",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Capture frames dropped because the transport was unavailable.",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Conversation turns committed to the transcript.",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Barge-in interruptions that cancelled in-flight playback.",
		}),
		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by name and outcome.",
		}, []string{"tool", "outcome"}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from end of user speech to first remote audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
	}
}

// SetState marks the given state as active and clears all others.
func (m *Metrics) SetState(state string) {
	for _, s := range []string{"idle", "connecting", "active", "error", "closed"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// ObserveFirstAudioLatency records the latency to the first remote audio chunk.
func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
