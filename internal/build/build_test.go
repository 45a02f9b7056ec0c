package build

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		s         string
		wantKnown bool
		wantDone  bool
	}{
		{"queued", true, false},
		{"running", true, false},
		{"succeeded", true, true},
		{"failed", true, true},
		{"canceled", true, true},
		{"paused", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			status, known := ParseStatus(tt.s)
			if got, want := known, tt.wantKnown; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
			if got, want := status.Done(), tt.wantDone; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	for _, s := range []string{"AndroidDevelopment", "AndroidRelease"} {
		p, known := ParsePlatform(s)
		if !known {
			t.Fatalf("got unknown %q, want known", s)
		}
		if got, want := p.Target(), "android"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	if _, known := ParsePlatform("iOS"); known {
		t.Fatal("got known iOS, want unknown")
	}

	var p Platform
	if err := p.UnmarshalText([]byte("AndroidRelease")); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	if got, want := p, PlatformAndroidRelease; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if err := p.UnmarshalText([]byte("androidrelease")); err == nil {
		t.Fatal("got no error, want error")
	}
}

func TestLogBehaviour(t *testing.T) {
	tests := []struct {
		behaviour    LogBehaviour
		wantEchoes   bool
		wantPersists bool
	}{
		{LogBehaviourStdout, true, false},
		{LogBehaviourStdoutFile, true, true},
		{LogBehaviourFile, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.behaviour), func(t *testing.T) {
			if _, known := ParseLogBehaviour(string(tt.behaviour)); !known {
				t.Fatal("got unknown, want known")
			}
			if got, want := tt.behaviour.Echoes(), tt.wantEchoes; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
			if got, want := tt.behaviour.Persists(), tt.wantPersists; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}

	if _, known := ParseLogBehaviour("Syslog"); known {
		t.Fatal("got known Syslog, want unknown")
	}
}

func TestStateCanTransition(t *testing.T) {
	path := []State{StateCreated, StateSettingsWritten, StateSpawned, StateRunning, StateCompleted, StateOutputLoaded}
	for i := 0; i+1 < len(path); i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Fatalf("got no transition from %s to %s, want one", path[i], path[i+1])
		}
	}

	for _, terminal := range []State{StateOutputLoaded, StateCanceled, StateFailed} {
		if !terminal.Terminal() {
			t.Fatalf("got non-terminal %s, want terminal", terminal)
		}
		for _, to := range path {
			if terminal.CanTransition(to) {
				t.Fatalf("got transition from %s to %s, want none", terminal, to)
			}
		}
	}

	if StateSettingsWritten.CanTransition(StateCanceled) {
		t.Fatal("got transition to canceled before the build tool runs, want none")
	}
	if StateCompleted.CanTransition(StateCanceled) {
		t.Fatal("got transition to canceled after the build tool exited, want none")
	}
}

func TestCanceledError(t *testing.T) {
	var err error = &CanceledError{}
	if !errors.Is(err, ErrCanceled) {
		t.Fatal("got not ErrCanceled, want ErrCanceled")
	}
	if errors.Is(err, ErrOutputLoad) {
		t.Fatal("got ErrOutputLoad, want not ErrOutputLoad")
	}
}
