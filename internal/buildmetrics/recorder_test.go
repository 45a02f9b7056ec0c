package buildmetrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/k11v/telebuild/internal/build"
)

func TestRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveSession(build.PlatformAndroidRelease, build.StateOutputLoaded, 2*time.Minute)
	r.ObserveSession(build.PlatformAndroidRelease, build.StateOutputLoaded, 3*time.Minute)
	r.ObserveSession(build.PlatformAndroidDevelopment, build.StateCanceled, time.Second)

	got := testutil.ToFloat64(r.sessions.WithLabelValues(string(build.PlatformAndroidRelease), string(build.StateOutputLoaded)))
	if want := 2.0; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	got = testutil.ToFloat64(r.sessions.WithLabelValues(string(build.PlatformAndroidDevelopment), string(build.StateCanceled)))
	if want := 1.0; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := testutil.CollectAndCount(r.sessionDuration), 2; got != want {
		t.Fatalf("got %d duration series, want %d", got, want)
	}
}

func TestRecorderNil(t *testing.T) {
	var r *Recorder
	r.ObserveSession(build.PlatformAndroidRelease, build.StateFailed, time.Second)
}
