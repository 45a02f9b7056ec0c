// Package buildmetrics exposes build session metrics to Prometheus.
package buildmetrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/k11v/telebuild/internal/build"
)

var _ build.Observer = (*Recorder)(nil)

// Recorder records the outcome and the duration of every finished session.
type Recorder struct {
	sessions        *prom.CounterVec
	sessionDuration *prom.HistogramVec
}

// NewRecorder creates the metrics and registers them with reg.
func NewRecorder(reg prom.Registerer) *Recorder {
	r := &Recorder{
		sessions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "telebuild",
			Name:      "sessions_total",
			Help:      "Finished build sessions by platform and final state",
		}, []string{"platform", "state"}),
		sessionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "telebuild",
			Name:      "session_duration_seconds",
			Help:      "Duration of build sessions by platform and final state",
			Buckets:   []float64{1, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"platform", "state"}),
	}
	reg.MustRegister(r.sessions, r.sessionDuration)
	return r
}

// ObserveSession implements build.Observer.
func (r *Recorder) ObserveSession(platform build.Platform, state build.State, duration time.Duration) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(string(platform), string(state)).Inc()
	r.sessionDuration.WithLabelValues(string(platform), string(state)).Observe(duration.Seconds())
}
